package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// Two guards in a row with the same return can be merged:
	//   if a { return err }
	//   if b { return err }
	// => if a || b { return err }
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	// Not always wrong. MMR selection is quadratic on purpose and is the usual hit.
	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic or reducing algorithmic complexity`)
}

// logging flags output that bypasses the structured logger.
func logging(m dsl.Matcher) {
	m.Match(`fmt.Println($*_)`, `fmt.Printf($*_)`, `fmt.Print($*_)`).
		Where(!m.File().PkgPath.Matches(`/cmd/`)).
		Report(`print to stdout outside cmd/; use logging.Logger`)

	m.Match(`log.Printf($*_)`, `log.Println($*_)`, `log.Fatalf($*_)`).
		Where(m.File().Imports("log")).
		Report(`stdlib log call; use logging.Logger`)
}

// sentinels flags direct comparison against wrapped error sentinels.
func sentinels(m dsl.Matcher) {
	m.Match(`$err == $sentinel`, `$err != $sentinel`).
		Where(m["err"].Type.Is("error") && m["sentinel"].Text.Matches(`^(\w+\.)?Err[A-Z]\w*$`)).
		Report(`compare errors with errors.Is; sentinels are usually wrapped`)
}

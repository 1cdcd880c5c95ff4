package bot

import (
	"math/rand"
	"unicode"
)

// qwertyNeighbors maps lowercase characters to the keys physically adjacent
// on a QWERTY layout. A simulated typo substitutes one of these, which is
// what a real finger slipping off a key produces.
var qwertyNeighbors = map[rune]string{
	'1': "2q`", '2': "13wq", '3': "24we", '4': "35er", '5': "46rt", '6': "57ty",
	'7': "68yu", '8': "79ui", '9': "80io", '0': "9-op",
	'q': "wa1s", 'w': "qase23", 'e': "wsdr34", 'r': "edft45", 't': "rfgy56",
	'y': "tghu67", 'u': "yhji78", 'i': "ujko89", 'o': "iklp90", 'p': "ol;0-",
	'a': "qwsz", 's': "awedxz", 'd': "serfcx", 'f': "drtgvc", 'g': "ftyhbv",
	'h': "gyujnb", 'j': "huikmn", 'k': "jiol,m", 'l': "kop;.",
	'z': "asx", 'x': "zsdc", 'c': "xdfv", 'v': "cfgb", 'b': "vghn", 'n': "bhjm", 'm': "njk,",
	' ': "cvbnm",
}

// typoFor picks a plausible mistyped character for the intended one:
// a case-preserved QWERTY neighbor when the key has a mapping, otherwise
// an adjacent ASCII code so that even unusual characters produce a
// near-miss rather than garbage.
func typoFor(intended rune, rng *rand.Rand) rune {
	lower := unicode.ToLower(intended)
	if neighbors, ok := qwertyNeighbors[lower]; ok {
		typo := rune(neighbors[rng.Intn(len(neighbors))])
		if unicode.IsUpper(intended) {
			typo = unicode.ToUpper(typo)
		}
		return typo
	}
	if rng.Intn(2) == 0 {
		return intended + 1
	}
	return intended - 1
}

package dict

import "github.com/mobiunpack/mobiunpack/internal/mobierr"

// Inflection rule opcodes (spec §4.8).
const (
	opInsertStart  = 0x01
	opInsertEnd    = 0x02
	opDeleteEnd    = 0x03
	opDeleteStart  = 0x04
	moveBackMin    = 0x0A
	moveBackMax    = 0x13
	literalOpStart = 0x14
)

// ApplyInflectionRule runs one rule's byte code against baseWord, per
// spec §4.8: modes 0x01/0x02 insert literal bytes at the start/end of a
// cursor window, 0x03/0x04 delete from the end/start (asserting the
// popped byte matches the literal that follows), 0x0A..0x13 move the
// cursor backward, and any higher opcode is a literal byte to insert or
// to verify-and-delete depending on the active mode. A mismatched delete
// aborts the whole rule and returns DictionaryRuleFailure; the caller
// should skip that derived form rather than emit a corrupted one.
func ApplyInflectionRule(baseWord string, rule []byte, ruleName string) (string, error) {
	word := []byte(baseWord)
	cursor := len(word)
	mode := byte(0)

	i := 0
	for i < len(rule) {
		op := rule[i]
		i++
		switch {
		case op == opInsertStart, op == opInsertEnd, op == opDeleteEnd, op == opDeleteStart:
			mode = op
			if mode == opInsertStart || mode == opDeleteStart {
				cursor = 0
			} else {
				cursor = len(word)
			}
		case op >= moveBackMin && op <= moveBackMax:
			back := int(op - moveBackMin)
			cursor -= back
			if cursor < 0 {
				cursor = 0
			}
		default:
			lit := op
			switch mode {
			case opInsertStart:
				word = insertAt(word, cursor, lit)
				cursor++
			case opInsertEnd:
				word = insertAt(word, cursor, lit)
				cursor++
			case opDeleteEnd:
				if cursor == 0 || word[cursor-1] != lit {
					return "", &mobierr.DictionaryRuleFailure{Entry: ruleName}
				}
				word = append(word[:cursor-1], word[cursor:]...)
				cursor--
			case opDeleteStart:
				if cursor >= len(word) || word[cursor] != lit {
					return "", &mobierr.DictionaryRuleFailure{Entry: ruleName}
				}
				word = append(word[:cursor], word[cursor+1:]...)
			default:
				return "", &mobierr.DictionaryRuleFailure{Entry: ruleName}
			}
		}
	}
	return string(word), nil
}

func insertAt(word []byte, pos int, b byte) []byte {
	if pos > len(word) {
		pos = len(word)
	}
	out := make([]byte, 0, len(word)+1)
	out = append(out, word[:pos]...)
	out = append(out, b)
	out = append(out, word[pos:]...)
	return out
}

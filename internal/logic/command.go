package logic

import (
	"fmt"
	"sort"
	"strings"
)

// MaxPayload bounds inbound command payloads; longer payloads are truncated.
const MaxPayload = 127

// Op is the kind of a parsed command.
type Op string

const (
	OpUnknown Op = "UNKNOWN"
	OpSetMode Op = "SET_MODE"
	OpReplay  Op = "REPLAY"
)

// Command is a parsed inbound payload.
type Command struct {
	Op   Op
	Mode Mode   // OpSetMode only
	Slot string // OpReplay only
	// Text is the normalized payload the command was parsed from.
	Text string
}

func (c Command) String() string {
	switch c.Op {
	case OpSetMode:
		return fmt.Sprintf("set-mode(%s)", c.Mode)
	case OpReplay:
		return fmt.Sprintf("replay(%s)", c.Slot)
	}
	return fmt.Sprintf("unrecognized(%q)", c.Text)
}

// Vocabulary maps payload text to commands.
type Vocabulary map[string]Command

// NewVocabulary recognizes "auto", "learn" and each slot name. A slot whose
// normalized name collides with a mode word or another slot is rejected.
func NewVocabulary(slots []string) (Vocabulary, error) {
	v := Vocabulary{
		"auto":  {Op: OpSetMode, Mode: ModeAuto},
		"learn": {Op: OpSetMode, Mode: ModeLearn},
	}
	for _, s := range slots {
		word := normalize(s)
		if word == "" {
			return nil, fmt.Errorf("slot %q has no command word", s)
		}
		if prev, taken := v[word]; taken {
			return nil, fmt.Errorf("slot %q collides with %s as command %q", s, prev, word)
		}
		v[word] = Command{Op: OpReplay, Slot: s}
	}
	return v, nil
}

// Alias adds word as another spelling of an existing vocabulary entry
// (or of "auto"/"learn"/a slot name). A word already bound to a different
// command is not rebound.
func (v Vocabulary) Alias(word, target string) error {
	cmd, ok := v[normalize(target)]
	if !ok {
		return fmt.Errorf("alias %q: unknown target %q", word, target)
	}
	key := normalize(word)
	if key == "" {
		return fmt.Errorf("alias for %q is empty", target)
	}
	if prev, taken := v[key]; taken && prev != cmd {
		return fmt.Errorf("alias %q: already means %s", word, prev)
	}
	v[key] = cmd
	return nil
}

// Words returns the recognized payloads in sorted order.
func (v Vocabulary) Words() []string {
	words := make([]string, 0, len(v))
	for w := range v {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// Parse maps a raw payload to a Command. Unknown text yields OpUnknown.
func (v Vocabulary) Parse(payload []byte) Command {
	text := normalize(string(Truncate(payload)))
	cmd, ok := v[text]
	if !ok {
		return Command{Op: OpUnknown, Text: text}
	}
	cmd.Text = text
	return cmd
}

// Truncate bounds payload to MaxPayload bytes.
func Truncate(payload []byte) []byte {
	if len(payload) > MaxPayload {
		return payload[:MaxPayload]
	}
	return payload
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

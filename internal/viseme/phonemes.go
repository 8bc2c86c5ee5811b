package viseme

import "sort"

// Animation channel names produced by the mapper. Mouth channels carry the
// viseme_ prefix so the smoother can classify them as fast by name alone.
const (
	ChannelBlink = "blink"

	ChannelContent   = "content"
	ChannelRelaxed   = "relaxed"
	ChannelConcerned = "concerned"
	ChannelAwkward   = "awkward"
	ChannelScared    = "scared"
	ChannelExcited   = "excited"
	ChannelNeutral   = "neutral"
	ChannelBrowRaise = "browRaise"
)

// phonemeTable maps an upstream phoneme code (ARPAbet-style, uppercase) to
// the single mouth-shape channel it drives. Codes absent from the table,
// including silence, drive no mouth shape at all.
var phonemeTable = map[string]string{
	"AA": "viseme_aa",
	"AH": "viseme_aa",
	"AO": "viseme_aa",
	"AW": "viseme_aa",
	"AY": "viseme_aa",
	"HH": "viseme_aa",

	"AE": "viseme_ee",
	"EH": "viseme_ee",
	"EY": "viseme_ee",

	"IH": "viseme_ih",
	"IY": "viseme_ih",
	"Y":  "viseme_ih",

	"OW": "viseme_oh",
	"OY": "viseme_oh",

	"UH": "viseme_ou",
	"UW": "viseme_ou",
	"W":  "viseme_ou",

	"B": "viseme_pp",
	"M": "viseme_pp",
	"P": "viseme_pp",

	"F": "viseme_ff",
	"V": "viseme_ff",

	"DH": "viseme_th",
	"TH": "viseme_th",

	"D": "viseme_dd",
	"T": "viseme_dd",

	"G":  "viseme_kk",
	"K":  "viseme_kk",
	"NG": "viseme_kk",

	"CH": "viseme_ch",
	"JH": "viseme_ch",
	"SH": "viseme_ch",
	"ZH": "viseme_ch",

	"S": "viseme_ss",
	"Z": "viseme_ss",

	"L": "viseme_nn",
	"N": "viseme_nn",

	"ER": "viseme_rr",
	"R":  "viseme_rr",
}

var (
	mouthChannels      []string
	expressionChannels = []string{
		ChannelContent,
		ChannelRelaxed,
		ChannelConcerned,
		ChannelAwkward,
		ChannelScared,
		ChannelExcited,
		ChannelNeutral,
		ChannelBrowRaise,
	}
)

func init() {
	seen := map[string]bool{}
	for _, ch := range phonemeTable {
		if !seen[ch] {
			seen[ch] = true
			mouthChannels = append(mouthChannels, ch)
		}
	}
	sort.Strings(mouthChannels)
}

// MouthChannels returns the viseme channel vocabulary, sorted. The returned
// slice is shared; callers must not mutate it.
func MouthChannels() []string { return mouthChannels }

// ExpressionChannels returns the expression channel vocabulary, sorted by
// authoring order. The returned slice is shared; callers must not mutate it.
func ExpressionChannels() []string { return expressionChannels }

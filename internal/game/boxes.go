package game

import (
	"fmt"
	rand "math/rand/v2"
	"strconv"
)

// BoxKind is the hidden type of an auction box.
type BoxKind uint8

const (
	BoxDiamond BoxKind = iota
	BoxNormal
	BoxBomb
	BoxMystery

	numBoxKinds
)

var boxKindNames = [...]string{
	BoxDiamond: "diamond",
	BoxNormal:  "normal",
	BoxBomb:    "bomb",
	BoxMystery: "mystery",
}

var _ = [1]struct{}{}[len(boxKindNames)-int(numBoxKinds)]

func (k BoxKind) String() string {
	if k < numBoxKinds {
		return boxKindNames[k]
	}
	return "box_kind(" + strconv.Itoa(int(k)) + ")"
}

func (k BoxKind) MarshalText() ([]byte, error) {
	if k >= numBoxKinds {
		return nil, fmt.Errorf("unknown box kind %d", k)
	}
	return []byte(boxKindNames[k]), nil
}

func (k *BoxKind) UnmarshalText(b []byte) error {
	for i, name := range boxKindNames {
		if name == string(b) {
			*k = BoxKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown box kind %q", b)
}

// MysteryEffect is the special effect sealed inside a mystery box.
type MysteryEffect uint8

const (
	EffectNone MysteryEffect = iota
	EffectSteal
	EffectSwap
	EffectRedistribute
	EffectDoubleOrNothing
	EffectShield

	numEffects
)

var effectNames = [...]string{
	EffectNone:            "",
	EffectSteal:           "steal",
	EffectSwap:            "swap",
	EffectRedistribute:    "redistribute",
	EffectDoubleOrNothing: "double_or_nothing",
	EffectShield:          "shield",
}

var _ = [1]struct{}{}[len(effectNames)-int(numEffects)]

func (e MysteryEffect) String() string {
	if e < numEffects {
		return effectNames[e]
	}
	return "effect(" + strconv.Itoa(int(e)) + ")"
}

func (e MysteryEffect) MarshalText() ([]byte, error) {
	if e >= numEffects {
		return nil, fmt.Errorf("unknown mystery effect %d", e)
	}
	return []byte(effectNames[e]), nil
}

func (e *MysteryEffect) UnmarshalText(b []byte) error {
	for i, name := range effectNames {
		if name == string(b) {
			*e = MysteryEffect(i)
			return nil
		}
	}
	return fmt.Errorf("unknown mystery effect %q", b)
}

// Box values are percentages of the winning bid.
const (
	bombPenaltyPct     = 80
	doubleOrNothingPct = 150
	stealPct           = 30
)

// AuctionBox is one sealed lot. Kind, ValuePct and Effect stay hidden until
// the box is resolved.
type AuctionBox struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Hint     string        `json:"hint"`
	Kind     BoxKind       `json:"kind"`
	ValuePct int           `json:"value_pct"`
	Effect   MysteryEffect `json:"effect,omitempty"`
}

// BoxView is what players see of a box before it is resolved.
type BoxView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Hint string `json:"hint"`
}

// View hides the box's contents.
func (b AuctionBox) View() BoxView {
	return BoxView{ID: b.ID, Name: b.Name, Hint: b.Hint}
}

// BoxDistribution is how many boxes of each kind a game uses.
type BoxDistribution struct {
	Diamond int
	Normal  int
	Bomb    int
	Mystery int
}

// DefaultBoxDistribution is one diamond, two normal, two bombs and one
// mystery box.
var DefaultBoxDistribution = BoxDistribution{Diamond: 1, Normal: 2, Bomb: 2, Mystery: 1}

// Total is the number of boxes.
func (d BoxDistribution) Total() int {
	return d.Diamond + d.Normal + d.Bomb + d.Mystery
}

var boxHints = [...][]string{
	BoxDiamond: {"It sparkles faintly.", "Heavier than it looks.", "Wrapped in velvet."},
	BoxNormal:  {"Nothing special about it.", "A plain wooden crate.", "Slightly dusty."},
	BoxBomb:    {"Something is ticking.", "Smells like smoke.", "Warm to the touch."},
	BoxMystery: {"Nobody knows what's inside.", "It hums quietly.", "The label is smudged."},
}

// decoyHintChance is the probability a box carries another kind's hint.
const decoyHintChance = 0.25

// GenerateBoxes deals the box sequence for a whole game. The order is
// shuffled once; boxes are auctioned in the returned order.
func GenerateBoxes(dist BoxDistribution, rng *rand.Rand) []AuctionBox {
	boxes := make([]AuctionBox, 0, dist.Total())
	add := func(kind BoxKind, n int, value func() int) {
		for range n {
			boxes = append(boxes, AuctionBox{Kind: kind, ValuePct: value()})
		}
	}
	add(BoxDiamond, dist.Diamond, func() int { return 200 + 50*rng.IntN(3) })
	add(BoxNormal, dist.Normal, func() int { return 30 + 10*rng.IntN(4) })
	add(BoxBomb, dist.Bomb, func() int { return bombPenaltyPct })
	add(BoxMystery, dist.Mystery, func() int { return doubleOrNothingPct })

	rng.Shuffle(len(boxes), func(i, j int) { boxes[i], boxes[j] = boxes[j], boxes[i] })

	for i := range boxes {
		b := &boxes[i]
		b.ID = "box-" + strconv.Itoa(i+1)
		b.Name = "Box #" + strconv.Itoa(i+1)
		if b.Kind == BoxMystery {
			b.Effect = MysteryEffect(1 + rng.IntN(int(numEffects)-1))
		}
		hintKind := b.Kind
		if rng.Float64() < decoyHintChance {
			hintKind = BoxKind(rng.IntN(int(numBoxKinds)))
		}
		hints := boxHints[hintKind]
		b.Hint = hints[rng.IntN(len(hints))]
	}
	return boxes
}

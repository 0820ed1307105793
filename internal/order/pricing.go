package order

import (
	"fmt"

	"github.com/henzerboss/evsi-store/internal/model"
)

const maxChannelPrice = 1_000_000

// ValidationError wraps a user-facing validation message; rejected before
// any persistence.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// DiscountedPrice applies a percentage discount to a channel price.
// The discount is clamped to [0,95] and the result is rounded half-up with
// a floor of 1 Star, so a discounted item never becomes free.
func DiscountedPrice(price, discountPercent int) int {
	p := clampInt(price, 0, maxChannelPrice)
	d := clampInt(discountPercent, 0, 95)
	v := (p*(100-d) + 50) / 100
	if v < 1 {
		return 1
	}
	return v
}

// ComputeTotal derives the immutable order total from current settings and
// the selected channels. Channel-priced kinds require at least one channel.
// The returned amount is fixed at creation and never recomputed afterwards.
func ComputeTotal(kind Kind, settings model.Settings, channels []model.Channel, rcPrice, aiPrice int) (int, error) {
	switch kind {
	case KindRandomCoffee:
		return rcPrice, nil
	case KindResumeAI:
		return aiPrice, nil
	}

	if len(channels) == 0 {
		return 0, &ValidationError{Msg: "at least one channel must be selected"}
	}

	sum := 0
	for _, ch := range channels {
		if settings.ChannelDiscountPercent > 0 {
			sum += DiscountedPrice(ch.PriceStars, settings.ChannelDiscountPercent)
		} else {
			sum += ch.PriceStars
		}
	}

	base := 0
	switch kind {
	case KindVacancy:
		base = settings.VacancyBasePriceStars
	case KindResume:
		base = settings.ResumeBasePriceStars
	default:
		return 0, fmt.Errorf("kind %s is not channel-priced", kind)
	}

	return base + sum, nil
}

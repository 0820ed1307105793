package order_test

import (
	"errors"
	"testing"

	"github.com/henzerboss/evsi-store/internal/model"
	"github.com/henzerboss/evsi-store/internal/order"
)

func TestDiscountedPrice(t *testing.T) {
	cases := []struct {
		name     string
		price    int
		discount int
		want     int
	}{
		{"no discount", 225, 0, 225},
		{"ten percent rounds half up", 225, 10, 203}, // 202.5 → 203
		{"half price", 100, 50, 50},
		{"discount clamped to 95", 100, 120, 5},
		{"negative discount clamped to 0", 100, -10, 100},
		{"floor is one star", 1, 95, 1},
		{"zero price floors to one", 0, 50, 1},
		{"negative price clamped", -100, 0, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := order.DiscountedPrice(c.price, c.discount); got != c.want {
				t.Errorf("DiscountedPrice(%d, %d) = %d, want %d", c.price, c.discount, got, c.want)
			}
		})
	}
}

func TestComputeTotal_ChannelPriced(t *testing.T) {
	settings := model.Settings{
		VacancyBasePriceStars:  50,
		ResumeBasePriceStars:   20,
		ChannelDiscountPercent: 0,
	}
	channels := []model.Channel{
		{PriceStars: 225},
		{PriceStars: 75},
	}

	total, err := order.ComputeTotal(order.KindVacancy, settings, channels, 100, 10)
	if err != nil {
		t.Fatalf("ComputeTotal: %v", err)
	}
	if total != 350 {
		t.Errorf("vacancy total = %d, want 350", total)
	}

	total, err = order.ComputeTotal(order.KindResume, settings, channels, 100, 10)
	if err != nil {
		t.Fatalf("ComputeTotal: %v", err)
	}
	if total != 320 {
		t.Errorf("resume total = %d, want 320", total)
	}
}

func TestComputeTotal_DiscountApplied(t *testing.T) {
	settings := model.Settings{ChannelDiscountPercent: 20}
	channels := []model.Channel{{PriceStars: 225}, {PriceStars: 75}}

	total, err := order.ComputeTotal(order.KindVacancy, settings, channels, 100, 10)
	if err != nil {
		t.Fatalf("ComputeTotal: %v", err)
	}
	// 225 → 180, 75 → 60
	if total != 240 {
		t.Errorf("discounted total = %d, want 240", total)
	}
}

func TestComputeTotal_FixedPriceKinds(t *testing.T) {
	settings := model.Settings{VacancyBasePriceStars: 999}

	total, err := order.ComputeTotal(order.KindRandomCoffee, settings, nil, 100, 10)
	if err != nil {
		t.Fatalf("ComputeTotal: %v", err)
	}
	if total != 100 {
		t.Errorf("random coffee total = %d, want 100", total)
	}

	total, err = order.ComputeTotal(order.KindResumeAI, settings, nil, 100, 10)
	if err != nil {
		t.Fatalf("ComputeTotal: %v", err)
	}
	if total != 10 {
		t.Errorf("resume AI total = %d, want 10", total)
	}
}

func TestComputeTotal_NoChannelsRejected(t *testing.T) {
	_, err := order.ComputeTotal(order.KindVacancy, model.Settings{}, nil, 100, 10)
	if err == nil {
		t.Fatal("expected validation error for zero channels")
	}
	var verr *order.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("error type = %T, want *ValidationError", err)
	}
}

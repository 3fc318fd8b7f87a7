package models

import (
	"testing"

	"pgregory.net/rapid"
)

var deliveryStatuses = []string{DeliverySent, DeliveryDelivered, DeliveryRead}

func TestDeliveryAdvances_Basics(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{DeliverySent, DeliveryDelivered, true},
		{DeliverySent, DeliveryRead, true},
		{DeliveryDelivered, DeliveryRead, true},
		{DeliveryDelivered, DeliverySent, false},
		{DeliveryRead, DeliverySent, false},
		{DeliveryRead, DeliveryDelivered, false},
		{DeliverySent, DeliverySent, false},
		{DeliveryRead, DeliveryRead, false},
		{"BOGUS", DeliveryRead, false},
		{DeliverySent, "BOGUS", false},
	}
	for _, c := range cases {
		if got := DeliveryAdvances(c.from, c.to); got != c.want {
			t.Errorf("DeliveryAdvances(%q, %q) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

// 任意转移序列下，按 DeliveryAdvances 守卫应用后状态从不回退
func TestDeliveryAdvances_MonotonicUnderAnySequence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		status := DeliverySent
		transitions := rapid.SliceOf(rapid.SampledFrom(deliveryStatuses)).Draw(t, "transitions")

		for _, next := range transitions {
			before := status
			if DeliveryAdvances(status, next) {
				status = next
			}
			if deliveryRank(status) < deliveryRank(before) {
				t.Fatalf("状态回退: %s -> %s", before, status)
			}
		}
	})
}

// 前进转移不可逆：一旦 from → to 合法，to → from 必不合法
func TestDeliveryAdvances_Antisymmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		from := rapid.SampledFrom(deliveryStatuses).Draw(t, "from")
		to := rapid.SampledFrom(deliveryStatuses).Draw(t, "to")

		if DeliveryAdvances(from, to) && DeliveryAdvances(to, from) {
			t.Fatalf("转移不应双向合法: %s <-> %s", from, to)
		}
	})
}

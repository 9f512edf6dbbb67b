package order

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"pending to confirmed", StatusPending, StatusConfirmed, true},
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"pending to delivered", StatusPending, StatusDelivered, false},
		{"pending to shipped", StatusPending, StatusShipped, false},
		{"confirmed to processing", StatusConfirmed, StatusProcessing, true},
		{"confirmed to cancelled", StatusConfirmed, StatusCancelled, true},
		{"confirmed to shipped", StatusConfirmed, StatusShipped, false},
		{"processing to shipped", StatusProcessing, StatusShipped, true},
		{"processing to cancelled", StatusProcessing, StatusCancelled, true},
		{"shipped to delivered", StatusShipped, StatusDelivered, true},
		{"shipped to cancelled", StatusShipped, StatusCancelled, false},
		{"delivered is terminal", StatusDelivered, StatusCancelled, false},
		{"cancelled is terminal", StatusCancelled, StatusConfirmed, false},
		{"no self transition", StatusPending, StatusPending, false},
		{"unknown status", Status("BOGUS"), StatusConfirmed, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransition(tc.from, tc.to); got != tc.want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestCanTransitionPayment(t *testing.T) {
	cases := []struct {
		name string
		from PaymentStatus
		to   PaymentStatus
		want bool
	}{
		{"unpaid to paid", PaymentUnpaid, PaymentPaid, true},
		{"unpaid to failed", PaymentUnpaid, PaymentFailed, true},
		{"paid is terminal", PaymentPaid, PaymentFailed, false},
		{"failed is terminal", PaymentFailed, PaymentPaid, false},
		{"paid back to unpaid", PaymentPaid, PaymentUnpaid, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransitionPayment(tc.from, tc.to); got != tc.want {
				t.Fatalf("CanTransitionPayment(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestPaymentMethodValid(t *testing.T) {
	for _, m := range []PaymentMethod{
		PaymentMethodCOD, PaymentMethodBankTransfer, PaymentMethodCreditCard,
		PaymentMethodDebitCard, PaymentMethodEWallet,
	} {
		if !m.Valid() {
			t.Fatalf("expected %s to be valid", m)
		}
	}
	if PaymentMethod("CASH").Valid() {
		t.Fatalf("expected CASH to be invalid")
	}
	if PaymentMethod("").Valid() {
		t.Fatalf("expected empty method to be invalid")
	}
}

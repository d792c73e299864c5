package memory

import (
	"context"
	"testing"
	"time"

	"mejaresto/internal/domain"
)

func TestOrderNumberResetsPerBranchDay(t *testing.T) {
	s := New()
	ctx := context.Background()
	day1 := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	create := func(id string, branchID string, at time.Time) string {
		t.Helper()
		order, err := s.CreateOrder(ctx, domain.Order{
			ID:        id,
			TenantID:  "t1",
			BranchID:  branchID,
			CreatedAt: at,
		})
		if err != nil {
			t.Fatalf("create order %s: %v", id, err)
		}
		return order.OrderNumber
	}

	if n := create("o1", "b1", day1); n != "20260314-0001" {
		t.Fatalf("first number = %s, want 20260314-0001", n)
	}
	if n := create("o2", "b1", day1); n != "20260314-0002" {
		t.Fatalf("second number = %s, want 20260314-0002", n)
	}

	// Counters are scoped per branch.
	if n := create("o3", "b2", day1); n != "20260314-0001" {
		t.Fatalf("other branch number = %s, want 20260314-0001", n)
	}

	// And start over on the next day.
	if n := create("o4", "b1", day2); n != "20260315-0001" {
		t.Fatalf("next day number = %s, want 20260315-0001", n)
	}
}

package taskqueue

import "testing"

func TestCircuitBreakerOpensOnOverload(t *testing.T) {
	cb := NewCircuitBreaker(10)
	if !cb.ShouldAdmit(2, 0.1) {
		t.Fatalf("expected admit under threshold")
	}
	if cb.ShouldAdmit(20, 0.1) {
		t.Fatalf("expected reject over queue threshold")
	}
	if cb.GetState() != CircuitOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}
}

func TestCircuitBreakerRejectsWhileOpen(t *testing.T) {
	cb := NewCircuitBreaker(10)
	cb.ShouldAdmit(20, 0.1)
	if cb.ShouldAdmit(1, 0.1) {
		t.Fatalf("expected reject immediately after opening, cooldown not elapsed")
	}
}

func TestCircuitBreakerHalfOpenClosesAfterSuccesses(t *testing.T) {
	cb := NewCircuitBreaker(10)
	cb.state = CircuitHalfOpen
	cb.testLimit = 2

	for i := 0; i < cb.testLimit; i++ {
		if !cb.ShouldAdmit(1, 0.1) {
			t.Fatalf("expected test traffic admitted in half-open")
		}
		cb.RecordSuccess()
	}
	if !cb.ShouldAdmit(1, 0.1) {
		t.Fatalf("expected admit once healthy past test limit")
	}
	if cb.GetState() != CircuitClosed {
		t.Fatalf("state = %v, want closed", cb.GetState())
	}
}

func TestCircuitBreakerHalfOpenReopensOnFailure(t *testing.T) {
	cb := NewCircuitBreaker(10)
	cb.state = CircuitHalfOpen
	cb.testCount = 1

	cb.RecordFailure()
	if cb.GetState() != CircuitOpen {
		t.Fatalf("state = %v, want open after failure in half-open", cb.GetState())
	}
}

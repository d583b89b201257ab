package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestParseItemStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    ItemStatus
		wantErr bool
	}{
		{name: "uppercase", input: "SUBMITTED", want: ItemStatusSubmitted},
		{name: "lowercase with spaces", input: " pending ", want: ItemStatusPending},
		{name: "kebab case", input: "in-progress", want: ItemStatusInProgress},
		{name: "invalid", input: "archived", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseItemStatus(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseItemStatus() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseItemStatus() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseItemStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStatusLabel(t *testing.T) {
	t.Parallel()

	if got := ItemStatusAssigned.Label(); got != "Assigned" {
		t.Fatalf("Label() = %q, want Assigned", got)
	}
	if got := ItemStatusInProgress.Label(); got != "In Progress" {
		t.Fatalf("Label() = %q, want In Progress", got)
	}
	if got := BatchStatusCompleted.Label(); got != "Completed" {
		t.Fatalf("Label() = %q, want Completed", got)
	}
}

func TestParseDecision(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"approve", "APPROVED"} {
		got, err := ParseDecision(in)
		if err != nil || got != DecisionApproved {
			t.Fatalf("ParseDecision(%q) = %s, %v", in, got, err)
		}
	}
	got, err := ParseDecision("reject")
	if err != nil || got != DecisionRejected {
		t.Fatalf("ParseDecision(reject) = %s, %v", got, err)
	}
	if _, err := ParseDecision("maybe"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseDecision(maybe) error = %v, want ErrValidation", err)
	}
}

func TestConsistentPair(t *testing.T) {
	t.Parallel()

	valid := [][2]string{
		{"ASSIGNED", "ASSIGNED"},
		{"IN_PROGRESS", "IN_PROGRESS"},
		{"SUBMITTED", "COMPLETED"},
		{"APPROVED", "COMPLETED"},
		{"REJECTED", "COMPLETED"},
	}
	for _, p := range valid {
		if !ConsistentPair(ItemStatus(p[0]), MembershipStatus(p[1])) {
			t.Fatalf("ConsistentPair(%s, %s) = false, want true", p[0], p[1])
		}
	}

	invalid := [][2]string{
		{"PENDING", "ASSIGNED"},
		{"SUBMITTED", "IN_PROGRESS"},
		{"IN_PROGRESS", "COMPLETED"},
		{"REJECTED", "IN_PROGRESS"},
	}
	for _, p := range invalid {
		if ConsistentPair(ItemStatus(p[0]), MembershipStatus(p[1])) {
			t.Fatalf("ConsistentPair(%s, %s) = true, want false", p[0], p[1])
		}
	}
}

func TestTransitionTables(t *testing.T) {
	t.Parallel()

	if !CanTransitionItem(ItemStatusRejected, ItemStatusInProgress) {
		t.Fatal("rejected items must be re-annotatable")
	}
	if CanTransitionItem(ItemStatusApproved, ItemStatusInProgress) {
		t.Fatal("approved items must not move backward")
	}
	if !CanTransitionBatch(BatchStatusSubmitted, BatchStatusInProgress) {
		t.Fatal("submitted batch must roll back on re-annotation")
	}
	if CanTransitionBatch(BatchStatusCompleted, BatchStatusInProgress) {
		t.Fatal("completed batch must be terminal")
	}
}

func TestBatchProgressAndCounters(t *testing.T) {
	t.Parallel()

	b := Batch{ID: "b1", TotalItems: 4, CompletedItems: 1}
	if got := b.ProgressPercent(); got != 25 {
		t.Fatalf("ProgressPercent() = %v, want 25", got)
	}
	if err := b.CheckCounters(); err != nil {
		t.Fatalf("CheckCounters() unexpected error = %v", err)
	}

	empty := Batch{ID: "b2"}
	if got := empty.ProgressPercent(); got != 0 {
		t.Fatalf("ProgressPercent() = %v, want 0", got)
	}

	broken := Batch{ID: "b3", TotalItems: 1, CompletedItems: 2}
	if err := broken.CheckCounters(); err == nil {
		t.Fatal("CheckCounters() expected error for completed > total")
	}
}

func TestLabelMarkValidate(t *testing.T) {
	t.Parallel()

	base := LabelMark{
		ClassName: "car",
		Shape:     ShapeBox,
		Points:    []Point{{X: 1, Y: 1}, {X: 10, Y: 10}},
	}

	tests := []struct {
		name    string
		mutate  func(*LabelMark)
		wantErr bool
	}{
		{name: "valid box", mutate: func(m *LabelMark) {}},
		{name: "missing class", mutate: func(m *LabelMark) { m.ClassName = " " }, wantErr: true},
		{name: "inverted box", mutate: func(m *LabelMark) {
			m.Points = []Point{{X: 10, Y: 10}, {X: 1, Y: 1}}
		}, wantErr: true},
		{name: "polygon too short", mutate: func(m *LabelMark) {
			m.Shape = ShapePolygon
		}, wantErr: true},
		{name: "polygon ok", mutate: func(m *LabelMark) {
			m.Shape = ShapePolygon
			m.Points = []Point{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 5, Y: 5}}
		}},
		{name: "negative coordinate", mutate: func(m *LabelMark) {
			m.Shape = ShapePoint
			m.Points = []Point{{X: -1, Y: 3}}
		}, wantErr: true},
		{name: "invalid shape", mutate: func(m *LabelMark) { m.Shape = Shape("CIRCLE") }, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			current := base
			current.Points = append([]Point(nil), base.Points...)
			tt.mutate(&current)

			err := current.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestActorPrivileges(t *testing.T) {
	t.Parallel()

	if err := (Actor{ID: "", Role: RoleAdmin}).Validate(); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Validate() error = %v, want ErrForbidden", err)
	}
	if err := (Actor{ID: strings.Repeat("x", MaxActorIDLength+1), Role: RoleAdmin}).Validate(); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Validate() error = %v, want ErrForbidden for an oversized id", err)
	}
	if err := (Actor{ID: strings.Repeat("x", MaxActorIDLength), Role: RoleAdmin}).Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}
	oversized := Batch{ProjectID: "p", Name: "n", AssigneeID: strings.Repeat("x", MaxActorIDLength+1), Status: BatchStatusAssigned}
	if err := oversized.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Batch.Validate() error = %v, want ErrValidation for an oversized assignee", err)
	}
	if !(Actor{ID: "m", Role: RoleManager}).CanManageBatches() {
		t.Fatal("manager should manage batches")
	}
	if (Actor{ID: "a", Role: RoleAnnotator}).CanReview() {
		t.Fatal("annotator must not review")
	}
	if !(Actor{ID: "r", Role: RoleReviewer}).CanReview() {
		t.Fatal("reviewer should review")
	}
}

func TestLatestVerdict(t *testing.T) {
	t.Parallel()

	if Latest(nil) != nil {
		t.Fatal("Latest(nil) should be nil")
	}

	feedback := "bad box"
	verdicts := []ReviewVerdict{
		{ID: "v1", Sequence: 1, Decision: DecisionRejected, Feedback: &feedback},
		{ID: "v3", Sequence: 3, Decision: DecisionApproved},
		{ID: "v2", Sequence: 2, Decision: DecisionRejected},
	}
	if got := Latest(verdicts); got.ID != "v3" {
		t.Fatalf("Latest() = %s, want v3", got.ID)
	}
}

func TestErrorSentinelsWrapValidation(t *testing.T) {
	t.Parallel()

	if !errors.Is(ErrAlreadyCompleted, ErrValidation) {
		t.Fatal("ErrAlreadyCompleted should wrap ErrValidation")
	}
	if !errors.Is(ErrIncompleteItems, ErrValidation) {
		t.Fatal("ErrIncompleteItems should wrap ErrValidation")
	}
	if !strings.Contains(ErrIncompleteItems.Error(), "incomplete") {
		t.Fatalf("unexpected message %q", ErrIncompleteItems.Error())
	}
}

package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// humanize builds a fresh Caser per call; Casers are stateful.
func humanize(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(strings.ToLower(s), "_", " "))
}

// ItemStatus is the lifecycle state of a WorkItem.
type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "PENDING"
	ItemStatusAssigned   ItemStatus = "ASSIGNED"
	ItemStatusInProgress ItemStatus = "IN_PROGRESS"
	ItemStatusSubmitted  ItemStatus = "SUBMITTED"
	ItemStatusApproved   ItemStatus = "APPROVED"
	ItemStatusRejected   ItemStatus = "REJECTED"
)

func (s ItemStatus) String() string { return string(s) }

// Label returns the human readable form, e.g. "In Progress".
func (s ItemStatus) Label() string { return humanize(string(s)) }

func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemStatusPending, ItemStatusAssigned, ItemStatusInProgress,
		ItemStatusSubmitted, ItemStatusApproved, ItemStatusRejected:
		return true
	}
	return false
}

// Editable reports whether label marks may still be changed by the worker.
func (s ItemStatus) Editable() bool {
	return s == ItemStatusAssigned || s == ItemStatusInProgress
}

func ParseItemStatus(s string) (ItemStatus, error) {
	st := ItemStatus(normalizeEnum(s))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid item status %q", ErrValidation, s)
	}
	return st, nil
}

// BatchStatus is the lifecycle state of a Batch.
type BatchStatus string

const (
	BatchStatusAssigned   BatchStatus = "ASSIGNED"
	BatchStatusInProgress BatchStatus = "IN_PROGRESS"
	BatchStatusSubmitted  BatchStatus = "SUBMITTED"
	BatchStatusCompleted  BatchStatus = "COMPLETED"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) Label() string { return humanize(string(s)) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusAssigned, BatchStatusInProgress, BatchStatusSubmitted, BatchStatusCompleted:
		return true
	}
	return false
}

// Closed reports whether the batch no longer accepts membership changes.
func (s BatchStatus) Closed() bool {
	return s == BatchStatusSubmitted || s == BatchStatusCompleted
}

func ParseBatchStatus(s string) (BatchStatus, error) {
	st := BatchStatus(normalizeEnum(s))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid batch status %q", ErrValidation, s)
	}
	return st, nil
}

// MembershipStatus is the progress state of one item inside a batch.
type MembershipStatus string

const (
	MembershipStatusAssigned   MembershipStatus = "ASSIGNED"
	MembershipStatusInProgress MembershipStatus = "IN_PROGRESS"
	MembershipStatusCompleted  MembershipStatus = "COMPLETED"
)

func (s MembershipStatus) String() string { return string(s) }

func (s MembershipStatus) Label() string { return humanize(string(s)) }

func (s MembershipStatus) IsValid() bool {
	switch s {
	case MembershipStatusAssigned, MembershipStatusInProgress, MembershipStatusCompleted:
		return true
	}
	return false
}

// Decision is a reviewer's verdict on a submitted item.
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

func (d Decision) String() string { return string(d) }

func (d Decision) IsValid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// ItemStatus returns the item status a verdict moves the item to.
func (d Decision) ItemStatus() ItemStatus {
	if d == DecisionApproved {
		return ItemStatusApproved
	}
	return ItemStatusRejected
}

func ParseDecision(s string) (Decision, error) {
	switch normalizeEnum(s) {
	case "APPROVED", "APPROVE":
		return DecisionApproved, nil
	case "REJECTED", "REJECT":
		return DecisionRejected, nil
	}
	return "", fmt.Errorf("%w: invalid decision %q", ErrValidation, s)
}

func normalizeEnum(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

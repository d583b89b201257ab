package domain

// consistentPairs lists the only item/membership status combinations that may
// be observed for an item and its current membership.
var consistentPairs = map[ItemStatus]MembershipStatus{
	ItemStatusAssigned:   MembershipStatusAssigned,
	ItemStatusInProgress: MembershipStatusInProgress,
	ItemStatusSubmitted:  MembershipStatusCompleted,
	ItemStatusApproved:   MembershipStatusCompleted,
	ItemStatusRejected:   MembershipStatusCompleted,
}

// ConsistentPair reports whether an item status and its membership status are in lockstep.
func ConsistentPair(item ItemStatus, membership MembershipStatus) bool {
	want, ok := consistentPairs[item]
	return ok && want == membership
}

var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemStatusPending:    {ItemStatusAssigned},
	ItemStatusAssigned:   {ItemStatusInProgress, ItemStatusSubmitted, ItemStatusPending},
	ItemStatusInProgress: {ItemStatusSubmitted},
	ItemStatusSubmitted:  {ItemStatusApproved, ItemStatusRejected},
	ItemStatusRejected:   {ItemStatusInProgress},
}

// CanTransitionItem reports whether an item may move from one status to another.
func CanTransitionItem(from, to ItemStatus) bool {
	for _, next := range itemTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusAssigned:   {BatchStatusInProgress},
	BatchStatusInProgress: {BatchStatusSubmitted},
	BatchStatusSubmitted:  {BatchStatusCompleted, BatchStatusInProgress},
}

// CanTransitionBatch reports whether a batch may move from one status to another.
func CanTransitionBatch(from, to BatchStatus) bool {
	for _, next := range batchTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

package model

import (
	"encoding/json"
	"time"
)

// InvalidityKind names one eligibility rule.
type InvalidityKind string

// Known eligibility rules.
const (
	KindOnline             InvalidityKind = "ONLINE"
	KindValidateIntention  InvalidityKind = "VALIDATE_INTENTION"
	KindClientUpgrade      InvalidityKind = "CLIENT_UPGRADE"
	KindConnectionTime     InvalidityKind = "CONNECTION_TIME"
	KindIdentity           InvalidityKind = "IDENTITY"
	KindAccumulatedOffline InvalidityKind = "ACCUMULATED_OFFLINE_TIME"
	KindCommission         InvalidityKind = "COMMISSION"
	KindSelfStake          InvalidityKind = "SELF_STAKE"
	KindUnclaimedRewards   InvalidityKind = "UNCLAIMED_REWARDS"
	KindBlocked            InvalidityKind = "BLOCKED"
	KindSecondaryRank      InvalidityKind = "SECONDARY_RANK"
	KindProvider           InvalidityKind = "PROVIDER"
	KindBeefy              InvalidityKind = "BEEFY"
)

// InvalidityRecord states whether a candidate satisfies one rule.
type InvalidityRecord struct {
	Kind      InvalidityKind `json:"type"`
	Valid     bool           `json:"valid"`
	Detail    string         `json:"details"`
	UpdatedAt time.Time      `json:"updated"`
}

// InvalidityList keeps at most one record per kind. Setting a kind replaces
// its previous record in place and leaves the other kinds untouched; Records
// returns them in first-insertion order.
type InvalidityList struct {
	byKind map[InvalidityKind]InvalidityRecord
	order  []InvalidityKind
}

// NewInvalidityList builds a list from records; later duplicates win.
func NewInvalidityList(records ...InvalidityRecord) InvalidityList {
	var l InvalidityList
	for _, r := range records {
		l.Set(r)
	}
	return l
}

// Set stores r, replacing any prior record of the same kind.
func (l *InvalidityList) Set(r InvalidityRecord) {
	if l.byKind == nil {
		l.byKind = make(map[InvalidityKind]InvalidityRecord)
	}
	if _, ok := l.byKind[r.Kind]; !ok {
		l.order = append(l.order, r.Kind)
	}
	l.byKind[r.Kind] = r
}

// Get returns the record of kind k.
func (l *InvalidityList) Get(k InvalidityKind) (InvalidityRecord, bool) {
	r, ok := l.byKind[k]
	return r, ok
}

// Len returns the number of kinds recorded.
func (l *InvalidityList) Len() int { return len(l.order) }

// Records returns a copy of the records in first-insertion order.
func (l *InvalidityList) Records() []InvalidityRecord {
	out := make([]InvalidityRecord, 0, len(l.order))
	for _, k := range l.order {
		out = append(out, l.byKind[k])
	}
	return out
}

// Failing returns only the records whose rule is currently not satisfied.
func (l *InvalidityList) Failing() []InvalidityRecord {
	var out []InvalidityRecord
	for _, k := range l.order {
		if r := l.byKind[k]; !r.Valid {
			out = append(out, r)
		}
	}
	return out
}

// Clone returns an independent copy.
func (l InvalidityList) Clone() InvalidityList {
	return NewInvalidityList(l.Records()...)
}

// MarshalJSON encodes the list as an ordered array.
func (l InvalidityList) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Records())
}

// UnmarshalJSON decodes an array, collapsing duplicate kinds.
func (l *InvalidityList) UnmarshalJSON(b []byte) error {
	var records []InvalidityRecord
	if err := json.Unmarshal(b, &records); err != nil {
		return err
	}
	*l = NewInvalidityList(records...)
	return nil
}

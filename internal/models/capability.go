package models

import (
	"encoding/json"
	"sort"
)

// Capability names one operation a subject may invoke.
type Capability string

// Self-service capabilities.
const (
	CapProfileViewOwn   Capability = "profile.view_own"
	CapDashboardViewOwn Capability = "dashboard.view_own"
	CapDiaryWriteOwn    Capability = "diary.write_own"
	CapDiaryReadOwn     Capability = "diary.read_own"
	CapLeaveWriteOwn    Capability = "leave.write_own"
	CapLeaveReadOwn     Capability = "leave.read_own"
	CapQueryWriteOwn    Capability = "query.write_own"
	CapQueryReadOwn     Capability = "query.read_own"
	CapProjectWrite     Capability = "project.write"
	CapProjectReadOwn   Capability = "project.read_own"
	CapResourceReadOwn  Capability = "resource.read_own_batch"
)

// Staff capabilities. Faculty hold the read ones scoped to assigned batches.
const (
	CapBatchRead       Capability = "batch.read"
	CapStudentRead     Capability = "student.read"
	CapDiaryRead       Capability = "diary.read"
	CapProjectRead     Capability = "project.read"
	CapResourceRead    Capability = "resource.read"
	CapResourceWrite   Capability = "resource.write"
	CapAssignmentWrite Capability = "assignment.write"
)

// Admin-only capabilities.
const (
	CapBatchManage   Capability = "batch.manage"
	CapStudentReview Capability = "student.review"
	CapRoleAssign    Capability = "role.assign"
	CapDiaryLock     Capability = "diary.lock"
	CapLeaveReview   Capability = "leave.review"
	CapLeaveRead     Capability = "leave.read"
	CapQueryResolve  Capability = "query.resolve"
	CapQueryRead     Capability = "query.read"
)

// AllCapabilities lists every capability known to the engine.
var AllCapabilities = []Capability{
	CapProfileViewOwn, CapDashboardViewOwn,
	CapDiaryWriteOwn, CapDiaryReadOwn,
	CapLeaveWriteOwn, CapLeaveReadOwn,
	CapQueryWriteOwn, CapQueryReadOwn,
	CapProjectWrite, CapProjectReadOwn, CapResourceReadOwn,
	CapBatchRead, CapStudentRead, CapDiaryRead, CapProjectRead,
	CapResourceRead, CapResourceWrite, CapAssignmentWrite,
	CapBatchManage, CapStudentReview, CapRoleAssign, CapDiaryLock,
	CapLeaveReview, CapLeaveRead, CapQueryResolve, CapQueryRead,
}

// CapabilitySet is an immutable set of capabilities. The zero value is empty.
type CapabilitySet struct {
	caps map[Capability]struct{}
}

// NewCapabilitySet builds a set from caps.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := CapabilitySet{caps: make(map[Capability]struct{}, len(caps))}
	for _, c := range caps {
		set.caps[c] = struct{}{}
	}
	return set
}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s.caps[c]
	return ok
}

// Len returns the number of capabilities.
func (s CapabilitySet) Len() int { return len(s.caps) }

// List returns the capabilities sorted by name.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s.caps))
	for c := range s.caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON renders the set as a sorted array.
func (s CapabilitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// Scope bounds which rows a read capability covers.
type Scope string

const (
	ScopeNone            Scope = "none"
	ScopeSelf            Scope = "self"
	ScopeAssignedBatches Scope = "assigned_batches"
	ScopeAll             Scope = "all"
)

// Actor is the request-scoped view of the caller, re-derived from the store
// for every operation.
type Actor struct {
	SubjectID     string         `json:"subject_id"`
	Role          Role           `json:"role,omitempty"`
	StudentStatus ApprovalStatus `json:"student_status,omitempty"`
	ProfileID     string         `json:"profile_id,omitempty"`
	BatchID       string         `json:"batch_id,omitempty"`
	BatchIDs      []string       `json:"assigned_batch_ids,omitempty"`
	Scope         Scope          `json:"scope"`
	Capabilities  CapabilitySet  `json:"capabilities"`
}

// Can reports whether the actor holds c. A nil actor holds nothing.
func (a *Actor) Can(c Capability) bool {
	return a != nil && a.Capabilities.Has(c)
}

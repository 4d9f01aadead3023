package probe

import (
	"fmt"

	"github.com/seagrayinc/u2fhid-tester/internal/hid"
)

// Bucket is the classification of a probed device.
type Bucket int

const (
	// BucketInconclusive holds skipped devices; it is only ever a tally.
	BucketInconclusive Bucket = iota
	BucketNoFIDO1
	// Both requests accepted: the malformed one should have been refused.
	BucketBadRequestAccepted
	// Only the malformed request accepted: defective.
	BucketBadRequestOnlyAccepted
	// Well formed accepted, malformed refused: compliant.
	BucketBadRequestRejected
)

func (b Bucket) String() string {
	switch b {
	case BucketInconclusive:
		return "inconclusive"
	case BucketNoFIDO1:
		return "no-fido1-support"
	case BucketBadRequestAccepted:
		return "bad-request-accepted"
	case BucketBadRequestOnlyAccepted:
		return "bad-request-only-accepted"
	case BucketBadRequestRejected:
		return "bad-request-rejected"
	default:
		return fmt.Sprintf("Bucket(%d)", int(b))
	}
}

// Classify maps the two probe outcomes to a bucket. Combinations other than
// accepted/rejected pairs never reach it from Prober and come back
// BucketInconclusive.
func Classify(wellFormed, malformed Outcome) Bucket {
	switch {
	case wellFormed.Accepted() && malformed.Accepted():
		return BucketBadRequestAccepted
	case wellFormed.Rejected() && malformed.Rejected():
		return BucketNoFIDO1
	case wellFormed.Rejected() && malformed.Accepted():
		return BucketBadRequestOnlyAccepted
	case wellFormed.Accepted() && malformed.Rejected():
		return BucketBadRequestRejected
	default:
		return BucketInconclusive
	}
}

// Buckets are the append-only per-run device lists.
type Buckets struct {
	NoFIDO1                []hid.Info
	BadRequestAccepted     []hid.Info
	BadRequestOnlyAccepted []hid.Info
	BadRequestRejected     []hid.Info
}

// Add appends info to bucket b. It reports false for BucketInconclusive,
// which has no list.
func (bs *Buckets) Add(b Bucket, info hid.Info) bool {
	switch b {
	case BucketNoFIDO1:
		bs.NoFIDO1 = append(bs.NoFIDO1, info)
	case BucketBadRequestAccepted:
		bs.BadRequestAccepted = append(bs.BadRequestAccepted, info)
	case BucketBadRequestOnlyAccepted:
		bs.BadRequestOnlyAccepted = append(bs.BadRequestOnlyAccepted, info)
	case BucketBadRequestRejected:
		bs.BadRequestRejected = append(bs.BadRequestRejected, info)
	default:
		return false
	}
	return true
}

// Len is the number of devices across all four lists.
func (bs *Buckets) Len() int {
	return len(bs.NoFIDO1) + len(bs.BadRequestAccepted) + len(bs.BadRequestOnlyAccepted) + len(bs.BadRequestRejected)
}

// Report is the outcome of a sweep.
type Report struct {
	Probed  int
	Buckets Buckets
	Results []*Result
}

func (r *Report) add(res *Result) {
	r.Probed++
	r.Buckets.Add(res.Bucket, res.Device)
	r.Results = append(r.Results, res)
}

// Inconclusive counts devices that were probed but landed in no bucket.
func (r *Report) Inconclusive() int {
	return r.Probed - r.Buckets.Len()
}

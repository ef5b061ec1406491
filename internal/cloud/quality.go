package cloud

// Classify evaluates a record against its class profile and returns the
// resulting flag. Both thresholds are conjunctive and boundary-inclusive:
// an instance exactly at MinPoints and MinHeight passes. Optional upper
// bounds (MaxPoints, MaxHeight) reject oversized clusters such as
// building facades misclassified into the mast class; a zero bound is
// ignored.
//
// There is no partial credit. The flag is derived purely from
// (PointCount, Height, profile), so classification is deterministic and
// repeatable.
func Classify(rec InstanceRecord, profile ClassProfile) QualityFlag {
	if rec.PointCount < profile.MinPoints {
		return QualityFail
	}
	if profile.MaxPoints > 0 && rec.PointCount > profile.MaxPoints {
		return QualityFail
	}
	if rec.Height < profile.MinHeight {
		return QualityFail
	}
	if profile.MaxHeight > 0 && rec.Height > profile.MaxHeight {
		return QualityFail
	}
	return QualityPass
}

// ClassifyAll evaluates every record in a group in place and returns the
// number that passed.
func ClassifyAll(records []InstanceRecord, profile ClassProfile) int {
	passed := 0
	for i := range records {
		records[i].Quality = Classify(records[i], profile)
		if records[i].Quality == QualityPass {
			passed++
		}
	}
	return passed
}

package netkit

// FindActive returns the first record whose ID equals activeID.
func FindActive(records []NetworkRecord, activeID int) (NetworkRecord, bool) {
	for _, rec := range records {
		if rec.ID == activeID {
			return rec, true
		}
	}
	return NetworkRecord{}, false
}

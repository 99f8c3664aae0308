package identity

import "sort"

// Summary is the consolidated view of a cluster handed back to callers.
type Summary struct {
	PrimaryContactId    int64
	Emails              []string
	PhoneNumbers        []string
	SecondaryContactIds []int64
}

// NeedsNewContact returns true if the observation carries an email or phone number that no member
// of the cluster has yet. Such an observation is recorded as a new secondary, keeping the pairing
// even when one of its two values is already known.
func (c Cluster) NeedsNewContact(o Observation) bool {
	emails := make(map[string]struct{})
	phones := make(map[string]struct{})
	for _, m := range c.Members() {
		if m.Email != nil {
			emails[*m.Email] = struct{}{}
		}
		if m.PhoneNumber != nil {
			phones[*m.PhoneNumber] = struct{}{}
		}
	}
	if o.Email != nil {
		if _, ok := emails[*o.Email]; !ok {
			return true
		}
	}
	if o.PhoneNumber != nil {
		if _, ok := phones[*o.PhoneNumber]; !ok {
			return true
		}
	}
	return false
}

// Summarize assembles the response for a cluster. Emails and phone numbers are deduplicated, the
// primary's own values come first and the rest follow in order of creation.
func Summarize(c Cluster) Summary {
	members := c.Members()
	emails := make([]*string, 0, len(members))
	phones := make([]*string, 0, len(members))
	for _, m := range members {
		emails = append(emails, m.Email)
		phones = append(phones, m.PhoneNumber)
	}
	secondaryIds := make([]int64, 0, len(c.Secondaries))
	for _, s := range c.Secondaries {
		secondaryIds = append(secondaryIds, s.Id)
	}
	sort.Slice(secondaryIds, func(i, j int) bool {
		return secondaryIds[i] < secondaryIds[j]
	})
	return Summary{
		PrimaryContactId:    c.Primary.Id,
		Emails:              dedupe(emails),
		PhoneNumbers:        dedupe(phones),
		SecondaryContactIds: secondaryIds,
	}
}

// dedupe drops nil values and duplicates while preserving order. Since the primary's value is
// always first in the input, it is also first in the output.
func dedupe(values []*string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		if _, ok := seen[*v]; ok {
			continue
		}
		seen[*v] = struct{}{}
		result = append(result, *v)
	}
	return result
}

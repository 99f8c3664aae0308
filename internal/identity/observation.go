package identity

// Observation is the (email, phone number) pair supplied by a single identify call. Absent fields
// are nil, never empty strings.
type Observation struct {
	Email       *string
	PhoneNumber *string
}

// NewObservation normalizes the given fields, treating empty strings as absent, and returns
// ErrInvalidObservation if nothing is left.
func NewObservation(email *string, phoneNumber *string) (Observation, error) {
	o := Observation{Email: nonEmpty(email), PhoneNumber: nonEmpty(phoneNumber)}
	if o.Email == nil && o.PhoneNumber == nil {
		return Observation{}, ErrInvalidObservation
	}
	return o, nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

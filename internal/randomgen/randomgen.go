// Package randomgen produces plausible but random contact data for tests and load generation.
package randomgen

import (
	"fmt"
	"math/rand"
	"strings"
)

var firstNames = []string{
	"Anton", "Berta", "Carla", "Dirk", "Emil", "Erika", "Frieda", "Gustav", "Hanna", "Ida",
	"Jonas", "Klara", "Lorraine", "Marty", "Nora", "Otto", "Paula", "Rudi", "Sofia", "Zacharias",
}

var lastNames = []string{
	"Baines", "Brown", "Fischer", "Hoffmann", "Krause", "McFly", "Meyer", "Mustermann", "Novak",
	"Richter", "Schmidt", "Schulz", "Svoboda", "Tannen", "Wagner", "Weber", "Völler", "Zimmermann",
}

var domains = []string{"example.com", "example.org", "hillvalley.edu", "mail.test"}

// PickFirstName returns a random first name.
func PickFirstName() string {
	return firstNames[rand.Intn(len(firstNames))]
}

// PickLastName returns a random last name.
func PickLastName() string {
	return lastNames[rand.Intn(len(lastNames))]
}

// Email returns a random, most likely unique email address.
func Email() string {
	local := strings.ToLower(PickFirstName() + "." + PickLastName())
	return fmt.Sprintf("%s.%06d@%s", local, rand.Intn(1000000), domains[rand.Intn(len(domains))])
}

// PhoneNumber returns a random, most likely unique phone number made of digits only.
func PhoneNumber() string {
	return fmt.Sprintf("%d%09d", 1+rand.Intn(9), rand.Intn(1000000000))
}

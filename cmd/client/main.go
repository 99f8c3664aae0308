package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"gitlab.com/dirk.krummacker/identity-service/internal/randomgen"
	api "gitlab.com/dirk.krummacker/identity-service/pkg/model"
)

// identity is a pair of values sent in an earlier request.
type identity struct {
	email string
	phone string
}

// Usage example on the command line:
// > go run main.go -url=http://localhost:8080
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "the base URL of the identity service")
	flag.Parse()

	fmt.Println()
	fmt.Println("  Elements       NEW SECONDARY    LOOKUP     MERGE ")
	fmt.Println("---------------------------------------------------")
	sizes := []int{100, 500, 1000, 5000, 10000}
	for _, loops := range sizes {
		fmt.Printf("%10d", loops)
		identities := make([]identity, 0, loops)
		{
			// new primaries
			var duration int64
			for i := 0; i < loops; i++ {
				id := identity{email: randomgen.Email(), phone: randomgen.PhoneNumber()}
				identities = append(identities, id)
				_, d := sendIdentifyRequest(*baseURL, &id.email, &id.phone)
				duration += d
			}
			fmt.Printf("%10d", duration/int64(loops*1000))
		}
		{
			// new secondaries sharing the phone number
			f := func(id identity) int64 {
				email := randomgen.Email()
				_, d := sendIdentifyRequest(*baseURL, &email, &id.phone)
				return d
			}
			callInLoop(identities, f)
		}
		{
			// pure lookups by email
			f := func(id identity) int64 {
				_, d := sendIdentifyRequest(*baseURL, &id.email, nil)
				return d
			}
			callInLoop(identities, f)
		}
		{
			// merges of neighbouring identities
			var duration int64
			for i := 1; i < len(identities); i += 2 {
				_, d := sendIdentifyRequest(*baseURL, &identities[i-1].email, &identities[i].phone)
				duration += d
			}
			fmt.Printf("%10d", duration/int64(max(loops/2, 1)*1000))
		}
		fmt.Println()
	}
}

func callInLoop(identities []identity, f func(id identity) int64) {
	var duration int64
	for _, id := range identities {
		duration += f(id)
	}
	fmt.Printf("%10d", duration/int64(len(identities)*1000))
}

func sendIdentifyRequest(baseURL string, email *string, phone *string) (api.ContactSummary, int64) {
	request := api.IdentifyRequest{Email: email}
	if phone != nil {
		p := api.PhoneNumber(*phone)
		request.PhoneNumber = &p
	}
	body, err := json.Marshal(request)
	if err != nil {
		fmt.Println("could not marshal JSON", err)
		panic(err)
	}
	resBody, duration := sendRequest(http.MethodPost, baseURL+"/identify", bytes.NewReader(body))
	var response api.IdentifyResponse
	if err := json.Unmarshal(resBody, &response); err != nil {
		fmt.Println("could not unmarshal JSON", err)
		panic(err)
	}
	return response.Contact, duration
}

func sendRequest(method string, requestURL string, bodyReader io.Reader) ([]byte, int64) {
	req, err := http.NewRequest(method, requestURL, bodyReader)
	if err != nil {
		fmt.Println("could not create request", err)
		panic(err)
	}
	req.Header.Set("Content-Type", "application/json")
	before := time.Now().UnixNano()
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("error making http request", err)
		panic(err)
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		fmt.Println("could not read response body", err)
		panic(err)
	}
	if res.StatusCode != http.StatusOK {
		panic(fmt.Sprintf("unexpected status %d: %s", res.StatusCode, resBody))
	}
	after := time.Now().UnixNano()
	return resBody, after - before
}

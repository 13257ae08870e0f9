// Package account assembles the pool of posting identities once at process
// start: records from accounts.json merged with environment overrides,
// capped at ten, each wrapped in a posting client.
package account

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/chorusbot/chorus/pkg/fn"
	"github.com/chorusbot/chorus/pkg/jsonstore"
	"github.com/chorusbot/chorus/pkg/xapi"
)

// maxAccounts caps the pool and bounds the env probe.
const maxAccounts = 10

// LoadFile reads account records from the config file. A missing file
// yields an empty list; overrides from the environment may still fill the
// pool.
func LoadFile(path string) []xapi.Credentials {
	return jsonstore.Load[[]xapi.Credentials](path)
}

// FromEnv probes API_KEY_1..API_KEY_10 and friends for override accounts.
// An index without a primary credential is skipped.
func FromEnv() []xapi.Credentials {
	var out []xapi.Credentials
	for i := 1; i <= maxAccounts; i++ {
		acc := xapi.Credentials{
			APIKey:       os.Getenv(fmt.Sprintf("API_KEY_%d", i)),
			APISecret:    os.Getenv(fmt.Sprintf("API_SECRET_%d", i)),
			AccessToken:  os.Getenv(fmt.Sprintf("ACCESS_TOKEN_%d", i)),
			AccessSecret: os.Getenv(fmt.Sprintf("ACCESS_SECRET_%d", i)),
			BearerToken:  os.Getenv(fmt.Sprintf("BEARER_TOKEN_%d", i)),
		}
		if acc.BearerToken == "" {
			acc.BearerToken = acc.AccessToken
		}
		if acc.APIKey != "" {
			out = append(out, acc)
		}
	}
	return out
}

// Merge folds env overrides into the file records. An override whose
// primary credential matches an existing record replaces it; otherwise it
// is appended. The merged list is capped at ten, preserving order.
func Merge(file, overrides []xapi.Credentials) []xapi.Credentials {
	merged := append([]xapi.Credentials{}, file...)
	for _, ov := range overrides {
		replaced := false
		for i := range merged {
			if merged[i].APIKey == ov.APIKey {
				merged[i] = ov
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, ov)
		}
	}
	if len(merged) > maxAccounts {
		merged = merged[:maxAccounts]
	}
	log.Printf("loaded %d accounts", len(merged))
	return merged
}

// BuildPool constructs one posting client per account, named Account_N by
// position. An account whose client cannot be built is skipped with a
// warning; an empty pool is an error the caller must treat as fatal.
func BuildPool(accounts []xapi.Credentials) ([]*xapi.Client, error) {
	i := 0
	pool := fn.FilterMap(accounts, func(acc xapi.Credentials) (*xapi.Client, bool) {
		i++
		name := fmt.Sprintf("Account_%d", i)
		client, err := xapi.New(name, acc)
		if err != nil {
			log.Printf("warning: skipping %s: %v", name, err)
			return nil, false
		}
		return client, true
	})
	if len(pool) == 0 {
		return nil, errors.New("no usable accounts")
	}
	return pool, nil
}

package testing

import (
	"context"
	"testing"

	"github.com/marmos91/tunecache/pkg/store"
)

// StoreTestSuite is a comprehensive test suite for store.Backend implementations.
// It tests the interface contract, not implementation details, making it reusable
// across different implementations (memory, badger, filesystem).
//
// Usage:
//
//	func TestMyBackend(t *testing.T) {
//	    suite := &storetesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) store.Backend {
//	            return mybackend.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore is a factory function that creates a fresh Backend for each
	// test. This ensures test isolation. The suite closes the store when the
	// test ends.
	NewStore func(t *testing.T) store.Backend
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("PayloadOperations", suite.RunPayloadTests)
	t.Run("DeleteOperations", suite.RunDeleteTests)
	t.Run("Statistics", suite.RunStatsTests)
	t.Run("Lifecycle", suite.RunLifecycleTests)
}

// newStore creates a store and registers its cleanup.
func (suite *StoreTestSuite) newStore(t *testing.T) store.Backend {
	t.Helper()
	s := suite.NewStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}

// Package testutil provides lifecycle and polling helpers for tests of
// asynchttp components.
//
// Start a component for the duration of a test:
//
//	func TestMonitor(t *testing.T) {
//	    testutil.T(t).Setup(mon)
//	    // mon is stopped when the test ends
//	}
//
// Manual cleanup:
//
//	cleanup, err := testutil.Setup(client)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer cleanup()
//
// Wait for a condition reached on another goroutine:
//
//	testutil.Eventually(t, func() bool { return tr.Outstanding() == 0 }, "buffers released")
package testutil

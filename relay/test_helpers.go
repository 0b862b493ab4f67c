package relay

import "github.com/stretchr/testify/mock"

// MatchReceived creates a custom matcher for raw request arguments in mocks
func MatchReceived(matcher func(ReceivedRequest) bool) interface{} {
	return mock.MatchedBy(matcher)
}

// MatchRequest creates a custom matcher for request arguments in mocks
func MatchRequest(matcher func(Request) bool) interface{} {
	return mock.MatchedBy(matcher)
}

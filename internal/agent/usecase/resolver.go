package usecase

import (
	"context"
	"log"

	agentdomain "sqd-agent/internal/agent/domain"
)

// ResolveIdentity runs the two-step player lookup: a system-wide check by
// address, then a coach-scoped connection check. Lookup failures degrade to
// Unknown with a warning so classification and booking proceed on partial
// information instead of aborting the email.
func ResolveIdentity(ctx context.Context, backend BookingBackend, coachID, sender string) agentdomain.PlayerIdentity {
	address := agentdomain.ExtractAddress(sender)
	if address == "" {
		return agentdomain.PlayerIdentity{State: agentdomain.IdentityUnknown}
	}

	global, err := backend.LookupPlayerGlobal(ctx, address)
	if err != nil {
		log.Printf("[Agent] Global player lookup failed for %s: %v", address, err)
		return agentdomain.PlayerIdentity{State: agentdomain.IdentityUnknown}
	}
	if global == nil {
		return agentdomain.PlayerIdentity{State: agentdomain.IdentityUnknown}
	}

	connected, err := backend.LookupPlayerForCoach(ctx, coachID, address)
	if err != nil {
		log.Printf("[Agent] Coach-scoped player lookup failed for %s: %v", address, err)
		return agentdomain.PlayerIdentity{State: agentdomain.IdentityUnknown}
	}
	if connected == nil {
		return agentdomain.PlayerIdentity{State: agentdomain.IdentityRegisteredUnconnected}
	}
	return agentdomain.PlayerIdentity{
		State:    agentdomain.IdentityConnected,
		PlayerID: connected.ID,
	}
}

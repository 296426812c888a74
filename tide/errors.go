// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package tide

import "errors"

var (
	// ErrUnknownValidator is returned when a message's signer is not a
	// member of the active validator set.
	ErrUnknownValidator = errors.New("tide: signer is not in the validator set")

	// ErrSignatureInvalid is returned when a message's signature fails
	// verification.
	ErrSignatureInvalid = errors.New("tide: signature verification failed")

	// ErrSlotOutOfWindow is returned for a proposal or vote at a height
	// outside [last_finalized+1, last_finalized+H_max], and for a commit
	// at height 0 or above last_finalized+H_max.
	ErrSlotOutOfWindow = errors.New("tide: slot is outside the acceptance window")

	// ErrQuorumNotMet is returned when a Commit's signer count is
	// below the validator set's quorum.
	ErrQuorumNotMet = errors.New("tide: commit does not carry enough signatures for quorum")

	// ErrEpochMismatch is returned when require_epoch is set and a
	// message's epoch does not match the configured epoch.
	ErrEpochMismatch = errors.New("tide: epoch does not match the configured epoch")

	// ErrWrongProposer is returned for a proposal from anyone but the
	// designated round-robin proposer.
	ErrWrongProposer = errors.New("tide: proposer is not the designated proposer for this slot")

	// ErrParentMismatch is returned when a proposal's parent_hash does
	// not match the already-decided block at height-1.
	ErrParentMismatch = errors.New("tide: parent_hash does not match the decided parent block")

	// ErrDuplicateProposal is returned for a second, identical
	// proposal at an already-proposed slot.
	ErrDuplicateProposal = errors.New("tide: slot already has this exact proposal")

	// ErrMalformedCommit is returned for a Commit whose signatures are
	// not sorted-ascending-deduplicated by voter. A voter outside the
	// validator set yields ErrUnknownValidator instead.
	ErrMalformedCommit = errors.New("tide: commit signatures are malformed")
)

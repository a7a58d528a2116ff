package governance

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// signedMessagePrefix is the personal-message prefix for a 32-byte payload.
const signedMessagePrefix = "\x19Ethereum Signed Message:\n32"

// SignatureLength is the R || S || V signature size.
const SignatureLength = 65

// SignedVote is a vote submitted by a relayer on the voter's behalf.
type SignedVote struct {
	ProposalID common.Hash
	InFavor    bool
	Voter      common.Address
	Signature  []byte
}

func keccak(parts ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// VoteDigest returns keccak256(prefix || keccak256(id || inFavor || voter)).
func VoteDigest(id common.Hash, inFavor bool, voter common.Address) common.Hash {
	flag := []byte{0}
	if inFavor {
		flag[0] = 1
	}
	inner := keccak(id.Bytes(), flag, voter.Bytes())
	return common.BytesToHash(keccak([]byte(signedMessagePrefix), inner))
}

// SignVote signs a vote for relaying.
func SignVote(key *ecdsa.PrivateKey, id common.Hash, inFavor bool) (SignedVote, error) {
	voter := crypto.PubkeyToAddress(key.PublicKey)
	digest := VoteDigest(id, inFavor, voter)
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return SignedVote{}, fmt.Errorf("governance: sign vote: %w", err)
	}
	return SignedVote{ProposalID: id, InFavor: inFavor, Voter: voter, Signature: sig}, nil
}

// RecoverVoter returns the address that signed v. V may be 0, 1, 27 or 28.
func RecoverVoter(v SignedVote) (common.Address, error) {
	if len(v.Signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(v.Signature))
	}
	sig := make([]byte, SignatureLength)
	copy(sig, v.Signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return common.Address{}, fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, v.Signature[64])
	}
	digest := VoteDigest(v.ProposalID, v.InFavor, v.Voter)
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// RelayVote applies a signed vote.
func (c *Center) RelayVote(v SignedVote) error {
	signer, err := RecoverVoter(v)
	if err != nil {
		return err
	}
	if signer != v.Voter {
		return fmt.Errorf("%w: signed by %s, not %s", ErrInvalidSignature, signer.Hex(), v.Voter.Hex())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vote(v.Voter, v.ProposalID, v.InFavor, c.clock.Now())
}

// BatchRelayVotes applies each vote independently. The result holds one
// error (nil on success) per vote.
func (c *Center) BatchRelayVotes(votes []SignedVote) []error {
	errs := make([]error, len(votes))
	for i, v := range votes {
		errs[i] = c.RelayVote(v)
	}
	return errs
}

package blockchain

import (
	"duskledger/internal/core"
	"duskledger/internal/cryptoutil"
	"duskledger/internal/hashutil"
	"duskledger/internal/state"
)

// genesisDifficulty is the fixed 32-byte target every node agrees on at
// height 0: bit pattern 00 00 10 00 ... (the reference value).
var genesisDifficulty = hashutil.H256{0x00, 0x00, 0x10, 0x00}

// GenesisSeedBalance is the balance seeded onto the first of the three
// deterministic genesis accounts; the other two start at zero.
const GenesisSeedBalance = 10_000

// GenesisAccount returns the deterministic KeyPair for genesis account
// index i (0, 1, or 2), derived from the Ed25519 seed [i; 32].
func GenesisAccount(i byte) cryptoutil.KeyPair {
	var seed [32]byte
	for j := range seed {
		seed[j] = i
	}
	return cryptoutil.GenerateFromSeed(seed)
}

func genesisBlock() core.Block {
	header := core.Header{
		Parent:     hashutil.H256{},
		Nonce:      0,
		Difficulty: genesisDifficulty,
		Timestamp:  0,
		MerkleRoot: core.Content{}.MerkleRoot(),
	}
	return core.Block{Header: header, Content: core.Content{}}
}

func genesisState() state.State {
	s := state.New()
	for i := byte(0); i < 3; i++ {
		kp := GenesisAccount(i)
		balance := uint64(0)
		if i == 0 {
			balance = GenesisSeedBalance
		}
		s[kp.Address] = state.Account{Nonce: 0, Balance: balance}
	}
	return s
}

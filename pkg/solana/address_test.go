package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"hash"
	"testing"

	"filippo.io/edwards25519"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProgramAddress(t *testing.T) {
	// Vectors from the Solana SDK test suite, typo included.
	seedKey := mustDecode(t, "SeedPubey1111111111111111111111111111111111")
	programID := mustDecode(t, "BPFLoader1111111111111111111111111111111111")

	for _, tc := range []struct {
		seeds       [][]byte
		expected    string
		expectedErr error
	}{
		{seeds: [][]byte{{}, {1}}, expected: "3gF2KMe9KiC6FNVBmfg9i267aMPvK37FewCip4eGBFcT"},
		{seeds: [][]byte{[]byte("☉")}, expected: "7ytmC1nT1xY4RfxCV2ZgyA7UakC93do5ZdyhdF3EtPj7"},
		{seeds: [][]byte{[]byte("Talking"), []byte("Squirrels")}, expected: "HwRVBufQ4haG5XSgpspwKtNd3PC9GM9m1196uJW36vds"},
		{seeds: [][]byte{seedKey}, expected: "GUs5qLUfsEHkcMB9T38vjr18ypEhRuNWiePW2LoK4E3K"},
		{seeds: [][]byte{make([]byte, maxSeedLength+1)}, expectedErr: ErrMaxSeedLengthExceeded},
		{seeds: [][]byte{[]byte("short seed"), make([]byte, maxSeedLength+1)}, expectedErr: ErrMaxSeedLengthExceeded},
		{seeds: make([][]byte, maxSeeds+1), expectedErr: ErrTooManySeeds},
	} {
		actual, err := CreateProgramAddress(programID, tc.seeds...)
		if tc.expectedErr != nil {
			assert.Equal(t, tc.expectedErr, err)
			assert.Nil(t, actual)
			continue
		}

		require.NoError(t, err)
		assert.Equal(t, tc.expected, base58.Encode(actual))
	}

	_, err := CreateProgramAddress(programID, make([]byte, maxSeedLength))
	assert.NoError(t, err)

	// Seeds are not interchangeable with their concatenation's prefixes.
	single, err := CreateProgramAddress(programID, []byte("Talking"))
	require.NoError(t, err)
	pair, err := CreateProgramAddress(programID, []byte("Talking"), []byte("Squirrels"))
	require.NoError(t, err)
	assert.NotEqual(t, single, pair)
}

// onCurveHash ignores its input and always sums to a valid public key.
type onCurveHash struct {
	hash.Hash
	sum []byte
}

func (h onCurveHash) Sum([]byte) []byte { return h.sum }

func withOnCurveHash(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	programHashCtor = func() hash.Hash {
		return onCurveHash{Hash: sha256.New(), sum: pub}
	}
	t.Cleanup(func() { programHashCtor = sha256.New })
}

func mustDecode(t *testing.T, s string) []byte {
	b, err := base58.Decode(s)
	require.NoError(t, err)
	return b
}

func TestCreateProgramAddress_Invalid(t *testing.T) {
	withOnCurveHash(t)

	programID, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	_, err = CreateProgramAddress(programID, []byte("Lil'"), []byte("Bits"))
	assert.Equal(t, ErrInvalidPublicKey, err)
}

func TestFindProgramAddress_Exhausted(t *testing.T) {
	withOnCurveHash(t)

	programID, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		pub, bump, err := FindProgramAddressAndBump(programID, []byte("prereq"))
		assert.Equal(t, ErrDerivationExhausted, err)
		assert.Nil(t, pub)
		assert.EqualValues(t, 0, bump)
	}
}

func TestFindProgramAddress_SeedErrorsNotRetried(t *testing.T) {
	programID, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	_, _, err = FindProgramAddressAndBump(programID, make([]byte, maxSeedLength+1))
	assert.Equal(t, ErrMaxSeedLengthExceeded, err)

	// The bump occupies one of the seed slots.
	_, _, err = FindProgramAddressAndBump(programID, make([][]byte, maxSeeds)...)
	assert.Equal(t, ErrTooManySeeds, err)
}

func TestFindProgramAddress(t *testing.T) {
	for i := 0; i < 1000; i++ {
		programID, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)

		_, err = FindProgramAddress(programID, []byte("Lil'"), []byte("Bits"))
		assert.NoError(t, err)
	}
}

func TestFindProgramAddress_Deterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		programID, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		owner, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)

		seeds := [][]byte{[]byte("prereq"), owner}

		first, firstBump, err := FindProgramAddressAndBump(programID, seeds...)
		require.NoError(t, err)
		second, secondBump, err := FindProgramAddressAndBump(programID, seeds...)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, firstBump, secondBump)

		// Caller seeds must not be modified by the bump search
		assert.Len(t, seeds, 2)
		assert.Equal(t, []byte("prereq"), seeds[0])

		// The accepted bump is the highest one that is off curve
		for bump := int(firstBump) + 1; bump <= 255; bump++ {
			_, err := CreateProgramAddress(programID, append(seeds, []byte{byte(bump)})...)
			assert.Equal(t, ErrInvalidPublicKey, err)
		}
		recreated, err := CreateProgramAddress(programID, append(seeds, []byte{firstBump})...)
		require.NoError(t, err)
		assert.Equal(t, first, recreated)
	}
}

func TestFindProgramAddress_CrossImpl(t *testing.T) {
	for i := 0; i < 100; i++ {
		programID, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		owner, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)

		actual, bump, err := FindProgramAddressAndBump(programID, []byte("prereq"), owner)
		require.NoError(t, err)

		expected, expectedBump, err := solanago.FindProgramAddress(
			[][]byte{[]byte("prereq"), owner},
			solanago.PublicKeyFromBytes(programID),
		)
		require.NoError(t, err)

		assert.EqualValues(t, expected.Bytes(), actual)
		assert.Equal(t, expectedBump, bump)

		_, err = new(edwards25519.Point).SetBytes(actual)
		assert.Error(t, err, "derived address must not be a valid curve point")
	}
}

func TestFindProgramAddress_Ref(t *testing.T) {
	// program id -> FindProgramAddress(program, "Lil'", "Bits")
	for programID, expected := range map[string]string{
		"4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM": "Bn9pAWUXWc5Kd849xTkQcHqiCbHUEizLFn4r5Cf8XYnd",
		"8opHzTAnfzRpPEx21XtnrVTX28YQuCpAjcn1PczScKh": "oDvUHiiGdMo31xYzjefAzUekWH8EbCKrxgs2FkyTs1S",
		"CiDwVBFgWV9E5MvXWoLgnEgn2hK7rJikbvfWavzAQz3": "B2vBn2bmF9GuaGkebrm8oUqDC34pE6m4bagjNcVE6msv",
		"GcdayuLaLyrdmUu324nahyv33G5poQdLUEZ1nEytDeP": "2mN5Nfq9v1EwTV9FPTHPESZ3XiZce9wi5PQoULFuxvev",
		"LX3EUdRUBUa3TbsYXLEUdj9J3prXkWXvLYSWyYyc2Jj": "9CqF6oTZtW5zSeoLnZRoQmj3s2tXGPqifM1W8Z8LVE1z",
		"QRSsyMWN1yHT9ir42bgNZUNZ4PdEhcSWCrL2AryKpy5": "FwBDYafabYZLDC8FwaDCsLxWkKnaQxKuQv3afDAGiXJ8",
		"UKrXU5bFrTzrqqpZXs8GVDbp4xPweiM65ADXNAy3ddR": "2Y1miPDc3BkHVdNFeFTtRkiw8nbptrBqboJkbqxk5SFt",
		"YEGAxog9gxiGXxo538aAQxq55XAebpFfwU72ZUxmSHm": "5jeaj2d8T2hjU63h2chjtSnuUmjti6qZK7oi6jwTspoo",
		"c8fpTXm3XTRgE5maYQ24Li4L65wMYvAFomzXknxVEx7": "6brHYNpseuh39WW3Md5WxTyw12kqumR4tTyZqzkyPWZP",
		"g35TxFqwMx95vCk63fTxGTHb6ei4W24qg5t2x6xD3cT": "ESVKwnyn9DEkNcR5ZnHFbMK66nCArc9dChFCULstzLy5",
	} {
		actual, err := FindProgramAddress(mustDecode(t, programID), []byte("Lil'"), []byte("Bits"))
		require.NoError(t, err)
		assert.Equal(t, expected, base58.Encode(actual))
	}
}

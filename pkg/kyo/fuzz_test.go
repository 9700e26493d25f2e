// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kyo

import (
	"math/rand"
	"os"
	"reflect"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func randomBits(rng *rand.Rand, bits []bool) {
	for i := range bits {
		bits[i] = rng.Intn(2) == 1
	}
}

// randomName returns a printable name without trailing padding
func randomName(rng *rand.Rand) string {
	n := rng.Intn(NameSize + 1)
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('A' + rng.Intn(26))
	}
	return string(b)
}

// randomMessage builds a random response of a random kind
func randomMessage(rng *rand.Rand) Message {
	switch rng.Intn(7) {
	case 0:
		name := randomName(rng)
		if len(name) > ModelNameSize {
			name = name[:ModelNameSize]
		}
		return &Model{Name: name, FwMajor: uint8(rng.Intn(10)), FwMinor: uint8(rng.Intn(100))}
	case 1:
		m := &Peripherals{}
		for i := range m.Readers {
			m.Readers[i] = Peripheral{rng.Intn(2) == 1, rng.Intn(2) == 1, rng.Intn(2) == 1}
		}
		for i := range m.Keyboards {
			m.Keyboards[i] = Peripheral{rng.Intn(2) == 1, rng.Intn(2) == 1, rng.Intn(2) == 1}
		}
		return m
	case 2:
		m := &ZoneNames{Block: rng.Intn(ZoneNameBlocks)}
		for i := range m.Names {
			m.Names[i] = randomName(rng)
		}
		return m
	case 3:
		m := &StatusAndFaults{}
		randomBits(rng, m.ZoneAlarm[:])
		randomBits(rng, m.ZoneSabotage[:])
		randomBits(rng, m.PartitionAlarm[:])
		m.Faults.Fuse = rng.Intn(2) == 1
		m.Sabotage.System = rng.Intn(2) == 1
		return m
	case 4:
		m := &ArmedPartitions{Siren: rng.Intn(2) == 1}
		randomBits(rng, m.ArmedTotal[:])
		randomBits(rng, m.Disarmed[:])
		randomBits(rng, m.Outputs[:])
		randomBits(rng, m.ZoneInclusion[:])
		randomBits(rng, m.ZoneAlarmMemory[:])
		return m
	case 5:
		m := &LoggerPage{Page: rng.Intn(LoggerPages)}
		rng.Read(m.Data[:])
		return m
	default:
		m := &WidePartitionNames{}
		for i := range m.Names {
			m.Names[i] = randomName(rng)
		}
		return m
	}
}

func TestFuzz_DecodeRandomBytes(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		buf := make([]byte, rng.Intn(MaxFrameSize+8))
		rng.Read(buf)
		if len(buf) > 0 && rng.Intn(2) == 0 {
			buf[0] = SyncByte
		}

		msg, n, err := Decode(buf)
		if err != nil && (msg != nil || n != 0) {
			t.Fatalf("round %d: error with result (%v, %d, %v)", i, msg, n, err)
		}
		if n > len(buf) {
			t.Fatalf("round %d: consumed %d of %d bytes", i, n, len(buf))
		}
	}
}

func TestFuzz_RoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		want := randomMessage(rng)
		frame, err := Marshal(want)
		if err != nil {
			t.Fatalf("round %d: Marshal(%T) failed: %v", i, want, err)
		}
		got, n, err := Decode(frame)
		if err != nil {
			t.Fatalf("round %d: Decode failed: %v\nframe: %s", i, err, FormatFrame(frame))
		}
		if n != len(frame) || !reflect.DeepEqual(got, want) {
			t.Fatalf("round %d: mismatch\nexpected %+v\ngot      %+v", i, want, got)
		}
	}
}

func TestFuzz_SingleBitCorruptionDetected(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		frame, err := Marshal(randomMessage(rng))
		if err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
		// Flip one bit in the payload or checksum2
		pos := HeaderSize + rng.Intn(len(frame)-HeaderSize)
		frame[pos] ^= 1 << uint(rng.Intn(8))

		if _, _, err := Decode(frame); err == nil {
			t.Fatalf("round %d: corruption at %d not detected", i, pos)
		}
	}
}

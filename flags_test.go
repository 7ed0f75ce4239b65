package memcache

import (
	"testing"
	"time"

	"github.com/cacheflow/memcache/meta"
	"github.com/stretchr/testify/assert"
)

func TestTimeToLive_Indefinite(t *testing.T) {
	ttl := Indefinite()
	assert.Equal(t, 0, ttl.Seconds(time.Now()))
}

func TestTimeToLive_ExpiresAt(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ttl := ExpiresAt(now.Add(30 * time.Second))
	assert.Equal(t, 30, ttl.Seconds(now))
}

func TestTimeToLive_PastDeadlineCeilsToOne(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ttl := ExpiresAt(now.Add(-time.Hour))
	assert.Equal(t, 1, ttl.Seconds(now))
}

func TestTimeToLive_PresentDeadlineCeilsToOne(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ttl := ExpiresAt(now)
	assert.Equal(t, 1, ttl.Seconds(now))
}

func TestStorageMode_Token(t *testing.T) {
	assert.Equal(t, meta.ModeSet, StorageSet.token())
	assert.Equal(t, meta.ModeAdd, StorageAdd.token())
	assert.Equal(t, meta.ModeReplace, StorageReplace.token())
	assert.Equal(t, meta.ModeAppend, StorageAppend.token())
	assert.Equal(t, meta.ModePrepend, StoragePrepend.token())
}

func TestArithmeticMode_Token(t *testing.T) {
	assert.Equal(t, meta.ModeIncrement, Increment.token())
	assert.Equal(t, meta.ModeDecrement, Decrement.token())
}

func TestFlags_Build_Get_ZeroValueOmitsTTLToken(t *testing.T) {
	now := time.Now()
	tokens := Flags{}.build(meta.CmdGet, now)
	assert.Empty(t, tokens)
}

func TestFlags_Build_Set_ZeroValueOmitsTTLToken(t *testing.T) {
	now := time.Now()
	tokens := Flags{}.build(meta.CmdSet, now)
	assert.Empty(t, tokens)
}

func TestFlags_Build_Get(t *testing.T) {
	now := time.Now()
	f := Flags{ReturnValue: true, ReturnTTL: true, TTL: ExpiresAt(now.Add(60 * time.Second))}
	tokens := f.build(meta.CmdGet, now)

	require := []meta.Flag{
		{Type: meta.FlagReturnValue},
		{Type: meta.FlagReturnTTL},
		{Type: meta.FlagTTL, Token: "60"},
	}
	assert.Equal(t, require, tokens)
}

func TestFlags_Build_Set_DefaultModeOmitsModeFlag(t *testing.T) {
	now := time.Now()
	f := Flags{TTL: Indefinite()}
	tokens := f.build(meta.CmdSet, now)

	assert.Equal(t, []meta.Flag{{Type: meta.FlagTTL, Token: "0"}}, tokens)
}

func TestFlags_Build_Set_NonDefaultMode(t *testing.T) {
	now := time.Now()
	f := Flags{TTL: Indefinite(), StorageMode: StorageAdd}
	tokens := f.build(meta.CmdSet, now)

	assert.Equal(t, []meta.Flag{
		{Type: meta.FlagTTL, Token: "0"},
		{Type: meta.FlagMode, Token: meta.ModeAdd},
	}, tokens)
}

func TestFlags_Build_Arithmetic(t *testing.T) {
	now := time.Now()
	f := Flags{Delta: 5, ArithmeticMode: Decrement, ReturnValue: true}
	tokens := f.build(meta.CmdArithmetic, now)

	assert.Equal(t, []meta.Flag{
		{Type: meta.FlagDelta, Token: "5"},
		{Type: meta.FlagMode, Token: meta.ModeDecrement},
		{Type: meta.FlagReturnValue},
	}, tokens)
}

func TestFlags_Build_UnknownCommandYieldsNoTokens(t *testing.T) {
	f := Flags{}
	tokens := f.build(meta.CmdDelete, time.Now())
	assert.Empty(t, tokens)
}

package models

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestDecodePresence_FlattensSortedByKey(t *testing.T) {
	state := map[string][]json.RawMessage{
		"s1": {raw(`{"user_id":"s1","role":"seller","location":{"lat":1,"lng":1},"isOnline":true,"userName":"Pak Budi","isAvailable":true}`)},
		"b1": {raw(`{"user_id":"b1","role":"buyer","location":{"lat":1.001,"lng":1},"isOnline":true,"userName":"Ani","isAvailable":false,"paired_seller_id":"s1"}`)},
	}

	peers, rejected := DecodePresence(state)
	require.Empty(t, rejected)
	require.Len(t, peers, 2)

	assert.Equal(t, "b1", peers[0].ID)
	assert.Equal(t, RoleBuyer, peers[0].Role)
	assert.False(t, peers[0].IsAvailable)
	assert.Equal(t, "s1", peers[0].PairedSellerID)
	assert.Equal(t, "Ani", peers[0].DisplayName)

	assert.Equal(t, "s1", peers[1].ID)
	assert.Equal(t, &Location{Lat: 1, Lng: 1}, peers[1].Location)
}

func TestDecodePresence_KeyFillsMissingUserID(t *testing.T) {
	state := map[string][]json.RawMessage{
		"s9": {raw(`{"role":"seller","location":{"lat":2,"lng":3}}`)},
	}
	peers, rejected := DecodePresence(state)
	require.Empty(t, rejected)
	require.Len(t, peers, 1)
	assert.Equal(t, "s9", peers[0].ID)
}

func TestDecodePresence_RejectsBadRecords(t *testing.T) {
	state := map[string][]json.RawMessage{
		"a": {raw(`{"user_id":"a","role":"admin","location":{"lat":2,"lng":3}}`)},
		"b": {raw(`not json`)},
		"c": {raw(`{"user_id":"c","role":"buyer","location":{"lat":2,"lng":3},"isAvailable":true}`)},
	}
	peers, rejected := DecodePresence(state)
	assert.Len(t, rejected, 2)
	require.Len(t, peers, 1)
	assert.Equal(t, "c", peers[0].ID)
}

func TestDecodePresence_MissingLocationKeptAsNil(t *testing.T) {
	state := map[string][]json.RawMessage{
		"a": {raw(`{"user_id":"a","role":"seller"}`)},
		"b": {raw(`{"user_id":"b","role":"seller","location":{"lat":123,"lng":3}}`)},
	}
	peers, rejected := DecodePresence(state)
	require.Empty(t, rejected)
	require.Len(t, peers, 2)
	assert.Nil(t, peers[0].Location)
	assert.Nil(t, peers[1].Location)
}

func TestPresencePayload_RoundTripsPeer(t *testing.T) {
	p := Peer{
		ID:             "b1",
		Role:           RoleBuyer,
		Location:       &Location{Lat: -6.2, Lng: 106.8},
		DisplayName:    "Ani",
		IsOnline:       true,
		IsAvailable:    false,
		PairedSellerID: "s1",
	}
	data, err := json.Marshal(NewPresencePayload(p))
	require.NoError(t, err)

	peers, rejected := DecodePresence(map[string][]json.RawMessage{"b1": {data}})
	require.Empty(t, rejected)
	require.Len(t, peers, 1)
	assert.Equal(t, p, peers[0])
}

func TestDecodePing(t *testing.T) {
	p, err := DecodePing(raw(`{"seller_id":"s1","buyer_id":"b1","buyer_name":"Ani"}`))
	require.NoError(t, err)
	assert.Equal(t, PingPayload{SellerID: "s1", BuyerID: "b1", BuyerName: "Ani"}, p)

	_, err = DecodePing(raw(`{"buyer_id":"b1"}`))
	assert.Error(t, err)

	_, err = DecodePing(raw(`[]`))
	assert.Error(t, err)
}

func TestDecodeLocation(t *testing.T) {
	p, err := DecodeLocation(raw(`{"user_id":"s1","location":{"lat":1.5,"lng":2.5}}`))
	require.NoError(t, err)
	assert.Equal(t, "s1", p.UserID)
	assert.Equal(t, &Location{Lat: 1.5, Lng: 2.5}, p.Location)

	_, err = DecodeLocation(raw(`{"user_id":"s1"}`))
	assert.Error(t, err)

	_, err = DecodeLocation(raw(`{"user_id":"s1","location":{"lat":91,"lng":0}}`))
	assert.Error(t, err)
}

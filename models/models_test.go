package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_DecodesStringsAndNumbers(t *testing.T) {
	var rec AttendanceRecord
	require.NoError(t, json.Unmarshal([]byte(`{"id":17,"student_id":"9b2c","marked_by":null,"students":null}`), &rec))
	assert.Equal(t, ID("17"), rec.ID)
	assert.Equal(t, ID("9b2c"), rec.StudentID)
	assert.Equal(t, ID(""), rec.MarkedBy)
	assert.Nil(t, rec.Student)

	var bad ID
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &bad))
}

func TestID_EncodesNumericIDsAsNumbers(t *testing.T) {
	out, err := json.Marshal(map[string]ID{"n": "42", "s": "abc", "e": ""})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":42,"s":"abc","e":null}`, string(out))
}

func TestRosterRow_NullsWhenUnmarked(t *testing.T) {
	out, err := json.Marshal(RosterRow{StudentID: "1", RollNumber: "001", AttendanceDate: "2024-03-01"})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	for _, k := range []string{"status", "remarks", "attendance_id", "marked_at"} {
		v, ok := m[k]
		assert.True(t, ok, k)
		assert.Nil(t, v, k)
	}
}

func TestID_NonCanonicalNumbersStayStrings(t *testing.T) {
	out, err := json.Marshal(map[string]ID{"zero": "007", "plus": "+7", "neg": "-3", "big": "9007199254740993"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"zero":"007","plus":"+7","neg":-3,"big":9007199254740993}`, string(out))

	var back map[string]ID
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, ID("007"), back["zero"])
	assert.Equal(t, ID("+7"), back["plus"])
}

package msl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueEqual_StringIsCaseInsensitive(t *testing.T) {
	assert.True(t, StringValue("Loop").Equal(StringValue("loop")))
	assert.False(t, StringValue("Loop").Equal(StringValue("Cycle")))
}

func TestValueEqual_EnumComparesByOrdinalOrName(t *testing.T) {
	sq := EnumValue(3, "loop")
	assert.True(t, sq.Equal(StringValue("loop")), "enum should equal its string form")
	assert.True(t, sq.Equal(IntValue(3)), "enum should equal its ordinal")
	assert.False(t, sq.Equal(IntValue(4)))
}

func TestValueEqual_IntegerByDefault(t *testing.T) {
	assert.True(t, IntValue(5).Equal(IntValue(5)))
	assert.False(t, IntValue(5).Equal(IntValue(6)))
}

func TestValueCoercion(t *testing.T) {
	assert.Equal(t, int64(1), BoolValue(true).Int())
	assert.Equal(t, int64(3), FloatValue(3.7).Int())
	assert.Equal(t, "7", IntValue(7).String())
}

func TestConsAndAppendList(t *testing.T) {
	var list *Value
	list = AppendList(list, IntValue(1))
	list = AppendList(list, IntValue(2))
	list = AppendList(list, IntValue(3))

	var got []int64
	for n := list; n != nil && n.Kind == KindList; n = n.Tail {
		got = append(got, n.Head.Int())
	}
	assert.Equal(t, []int64{1, 2, 3}, got)
}

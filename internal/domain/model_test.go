package domain

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelKeepsCommonLibraryFirst(t *testing.T) {
	t.Parallel()

	common := NewCommonLibrary()
	model, err := NewModel("m", "", common)
	require.NoError(t, err)
	require.NoError(t, model.AddLibrary(NewLibrary("lib", "")))

	libs := model.Libraries()
	require.Len(t, libs, 2)
	assert.Same(t, common, libs[0])
	assert.Same(t, common, model.CommonLibrary())
	assert.Equal(t, "m", model.Name)

	err = model.RemoveLibrary(CommonLibraryID)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	require.NoError(t, model.RemoveLibrary("lib"))
	assert.Len(t, model.Libraries(), 1)
}

func TestNewModelRequiresCommonLibrary(t *testing.T) {
	t.Parallel()

	_, err := NewModel("m", "", nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestModelAddVariableRejectsDuplicates(t *testing.T) {
	t.Parallel()

	model, err := NewModel("m", "", NewCommonLibrary())
	require.NoError(t, err)

	require.NoError(t, model.AddVariable(NewVariable("v1")))
	err = model.AddVariable(NewVariable("v1"))
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.ErrorIs(t, model.AddVariable(NewVariable(" ")), ErrInvalidArgument)
	assert.Len(t, model.Variables(), 1)
}

func TestLibraryTypeIDsAreUniquePerLibrary(t *testing.T) {
	t.Parallel()

	first := NewLibrary("a", "")
	second := NewLibrary("b", "")

	require.NoError(t, first.AddType(NewSimpleType("t", "", "")))
	require.NoError(t, second.AddType(NewSimpleType("t", "", "")))
	assert.ErrorIs(t, first.AddType(NewSimpleType("t", "", "")), ErrDuplicateID)
	assert.Equal(t, 1, first.Len())
}

func TestLibraryConcurrentAppends(t *testing.T) {
	t.Parallel()

	lib := NewCommonLibrary()
	base := lib.Len()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, lib.AddType(NewSimpleType(TypeID(fmt.Sprintf("t%d", i)), "", "")))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, base+50, lib.Len())
}

func TestVariableAddTypeKeepsExistingTypes(t *testing.T) {
	t.Parallel()

	common := NewCommonLibrary()
	stateType, _ := common.Type(TypeStateVariable)
	textType, _ := common.Type(TypeText)

	v := NewVariable("v", stateType)
	require.NoError(t, v.AddType(textType))
	require.NoError(t, v.AddType(stateType))

	assert.Equal(t, []Type{stateType, textType, stateType}, v.Types())
	assert.ErrorIs(t, v.AddType(nil), ErrInvalidArgument)
}

func TestCompositeTypeRejectsDuplicateVariables(t *testing.T) {
	t.Parallel()

	_, err := NewCompositeType("ct", "", NewVariable("a"), NewVariable("a"))
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, err = NewCompositeType("", "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestModelFindFollowsCompositeTypes(t *testing.T) {
	t.Parallel()

	model, err := NewModel("m", "", NewCommonLibrary())
	require.NoError(t, err)

	inner := NewVariable("v31")
	ct, err := NewCompositeType("ct1", "", inner)
	require.NoError(t, err)
	require.NoError(t, model.AddVariable(NewVariable("v3", ct)))

	found, err := model.Find("v3.v31")
	require.NoError(t, err)
	assert.Same(t, inner, found)

	_, err = model.Find("v3.missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = model.Find("")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestModelFindThroughResolvedImport(t *testing.T) {
	t.Parallel()

	model, err := NewModel("m", "", NewCommonLibrary())
	require.NoError(t, err)

	it := NewImportType("v4", "/whatever", false)
	require.NoError(t, model.AddVariable(NewVariable("v4", it)))

	_, err = model.Find("v4.vi")
	assert.ErrorIs(t, err, ErrNotFound)

	vi := NewVariable("vi")
	ct, err := NewCompositeType("ct2", "", vi)
	require.NoError(t, err)
	it.Bind(ct)

	found, err := model.Find("v4.vi")
	require.NoError(t, err)
	assert.Same(t, vi, found)
}

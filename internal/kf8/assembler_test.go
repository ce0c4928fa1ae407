package kf8

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssembleCleanInsertion(t *testing.T) {
	skelText := `<html><body></body></html>`
	fragText := "Chapter One"
	rawML := []byte(skelText + fragText)

	skeletons := []Skeleton{
		{Num: 0, Name: "part0000", FragmentCount: 1, Start: 0, Length: len(skelText)},
	}
	fragments := []Fragment{
		{InsertPos: len(`<html><body>`), AIDText: "frag1", Start: len(skelText), Length: len(fragText)},
	}

	var warnings []error
	parts := Assemble(rawML, skeletons, fragments, func(err error) { warnings = append(warnings, err) })

	require.Empty(t, warnings)
	require.Len(t, parts, 1)
	require.Equal(t, "part0000.xhtml", parts[0].Filename)
	require.Equal(t, "<html><body>Chapter One</body></html>", string(parts[0].Body))
}

func TestAssembleRepairsMidTagInsertion(t *testing.T) {
	skelText := `<html><body><p aid="f2">OLD</p></body></html>`
	fragText := "NEW "
	rawML := []byte(skelText + fragText)

	// The recorded insert position (15) lands inside the "<p aid=\"f2\">"
	// tag (open '<' at 12, close '>' at 23); Assemble must relocate it to
	// just after the tag using the fragment's aid text.
	midTagPos := 15
	require.True(t, landsInsideTag([]byte(skelText), midTagPos))

	skeletons := []Skeleton{
		{Num: 0, Name: "part0000", FragmentCount: 1, Start: 0, Length: len(skelText)},
	}
	fragments := []Fragment{
		{InsertPos: midTagPos, AIDText: "f2", Start: len(skelText), Length: len(fragText)},
	}

	var warnings []error
	parts := Assemble(rawML, skeletons, fragments, func(err error) { warnings = append(warnings, err) })

	require.Empty(t, warnings)
	require.Len(t, parts, 1)
	require.Equal(t, `<html><body><p aid="f2">NEW OLD</p></body></html>`, string(parts[0].Body))
	// Assemble corrects the fragment's own InsertPos in place too.
	require.Equal(t, 24, fragments[0].InsertPos)
}

func TestAssembleWarnsWhenRepairFails(t *testing.T) {
	skelText := `<html><body><p aid="f2">OLD</p></body></html>`
	fragText := "NEW "
	rawML := []byte(skelText + fragText)

	skeletons := []Skeleton{
		{Num: 0, Name: "part0000", FragmentCount: 1, Start: 0, Length: len(skelText)},
	}
	fragments := []Fragment{
		// AIDText doesn't match anything in skelText, so repair fails.
		{InsertPos: 15, AIDText: "missing", Start: len(skelText), Length: len(fragText)},
	}

	var warnings []error
	parts := Assemble(rawML, skeletons, fragments, func(err error) { warnings = append(warnings, err) })

	require.Len(t, warnings, 1)
	require.Len(t, parts, 1)
}

func TestAssembleMultipleSkeletonsShareFragmentCursor(t *testing.T) {
	skel0 := `<a></a>`
	skel1 := `<b></b>`
	frag0 := "X"
	frag1 := "Y"
	rawML := []byte(skel0 + skel1 + frag0 + frag1)

	skeletons := []Skeleton{
		{Num: 0, FragmentCount: 1, Start: 0, Length: len(skel0)},
		{Num: 1, FragmentCount: 1, Start: len(skel0), Length: len(skel1)},
	}
	fragments := []Fragment{
		{InsertPos: len("<a>"), AIDText: "", Start: len(skel0) + len(skel1), Length: len(frag0)},
		{InsertPos: len(skel0) + len("<b>"), AIDText: "", Start: len(skel0) + len(skel1) + len(frag0), Length: len(frag1)},
	}

	parts := Assemble(rawML, skeletons, fragments, nil)
	require.Len(t, parts, 2)
	require.Equal(t, "<a>X</a>", string(parts[0].Body))
	require.Equal(t, "<b>Y</b>", string(parts[1].Body))
}

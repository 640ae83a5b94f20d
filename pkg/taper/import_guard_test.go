package taper

import (
	"testing"

	"seem/testutil"
)

func TestTaperStaysPublic(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "taper providers are implemented outside this module")
}

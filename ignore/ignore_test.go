package ignore

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	as := require.New(t)

	keep := Parse(`
# generated code
*.pb.go
vendor/
/build
!important.pb.go
`)

	as.True(keep("main.go"))
	as.True(keep("pkg/util/util.go"))
	as.False(keep("api/service.pb.go"))
	as.True(keep("api/important.pb.go"))
	as.False(keep("vendor/foo/foo.go"))
	as.False(keep("pkg/vendor/foo.go"))
	as.False(keep("build/out.go"))
	as.True(keep("pkg/build/out.go"))
	as.True(keep("./main.go"))
}

func TestParseEmpty(t *testing.T) {
	as := require.New(t)

	keep := Parse("# nothing to see here\n\n")
	as.True(keep("anything.go"))
}

func TestLoad(t *testing.T) {
	as := require.New(t)

	fs := memfs.New()

	// missing ignore file
	keep, err := Load(fs, ".", ".gofumptignore")
	as.NoError(err)
	as.True(keep("main.go"))

	as.NoError(util.WriteFile(fs, "sub/.gofumptignore", []byte("gen_*.go\n"), 0o644))

	keep, err = Load(fs, "sub", ".gofumptignore")
	as.NoError(err)
	as.True(keep("main.go"))
	as.False(keep("gen_types.go"))
	as.False(keep("deep/gen_types.go"))
}

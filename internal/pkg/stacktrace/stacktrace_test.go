package stacktrace

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternalPaths(t *testing.T) {
	stack := []byte(`goroutine 1 [running]:
runtime/debug.Stack()
	/usr/local/go/src/runtime/debug/stack.go:26 +0x5e
github.com/shandysiswandi/idgate/internal/account/usecase.(*Usecase).TOTPVerify(0xc000)
	/src/idgate/internal/account/usecase/totp_verify.go:42 +0x1d
github.com/shandysiswandi/idgate/internal/pkg/router.(*Router).endpoint.func1()
	/src/idgate/internal/pkg/router/router.go:120
net/http.HandlerFunc.ServeHTTP(0xc0001)
	/usr/local/go/src/net/http/server.go:2294 +0x29
`)

	assert.Equal(t, []string{
		"internal/account/usecase/totp_verify.go:42",
		"internal/pkg/router/router.go:120",
	}, InternalPaths(stack))
}

func TestInternalPaths_NoInternalFrames(t *testing.T) {
	assert.Empty(t, InternalPaths([]byte("goroutine 1 [running]:\nmain.main()\n\t/src/main.go:10 +0x1\n")))
	assert.Empty(t, InternalPaths(nil))
	assert.NotNil(t, InternalPaths(debug.Stack()))
}

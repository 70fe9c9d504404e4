package typesystem

import (
	"fmt"
	"strings"
)

// Signature is the per-function record the analyzer fills in. Parameter kinds
// are fixed by the first call site; the return kind by body analysis.
type Signature struct {
	Name       string
	Params     []string
	Line       int
	ParamKinds Slot[[]Kind]
	Return     Slot[Kind]
}

func NewSignature(name string, params []string, line int) *Signature {
	return &Signature{Name: name, Params: params, Line: line}
}

func (s *Signature) Arity() int { return len(s.Params) }

// ReturnKind is the kind a call expression evaluates to. A function whose
// return kind is still unknown behaves as returning an implicit i32 zero.
func (s *Signature) ReturnKind() Kind {
	if k, ok := s.Return.Get(); ok {
		return k
	}
	return KindI32
}

// DefaultParamKinds is the all-i32 parameter list used when no call site
// constrains the function.
func (s *Signature) DefaultParamKinds() []Kind {
	kinds := make([]Kind, len(s.Params))
	for i := range kinds {
		kinds[i] = KindI32
	}
	return kinds
}

// IsComplete reports whether both parameter and return kinds are final.
func (s *Signature) IsComplete() bool {
	return s.ParamKinds.Final() && s.Return.Final()
}

func (s *Signature) String() string {
	var params []string
	kinds, ok := s.ParamKinds.Get()
	for i, p := range s.Params {
		if ok {
			params = append(params, fmt.Sprintf("%s: %s", p, kinds[i]))
		} else {
			params = append(params, p+": ?")
		}
	}
	ret := "?"
	if k, ok := s.Return.Get(); ok {
		ret = k.String()
	}
	return fmt.Sprintf("%s(%s) -> %s", s.Name, strings.Join(params, ", "), ret)
}

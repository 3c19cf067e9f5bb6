package introspect

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/tools/go/packages"
)

// ErrLoadFailed is returned when the requested packages do not type-check.
var ErrLoadFailed = errors.New("introspect: package load failed")

// SourceIntrospector derives classes from Go source without running it.
// Classes it produces are marked SourceStatic and cannot be invoked; they
// serve metamodel validation of code that is not linked into the process.
type SourceIntrospector struct {
	mu         sync.RWMutex
	named      map[string]*types.Named
	memberTags map[string]map[string]string
	domain     []TypeRef
}

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo

// LoadSource type-checks the packages matching patterns relative to dir.
// Patterns default to ./... .
func LoadSource(ctx context.Context, dir string, patterns ...string) (*SourceIntrospector, error) {
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	cfg := &packages.Config{
		Context: ctx,
		Dir:     dir,
		Mode:    loadMode,
		Fset:    token.NewFileSet(),
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	var problems []string
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			problems = append(problems, e.Error())
		}
	})
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrLoadFailed, strings.Join(problems, "; "))
	}
	s := &SourceIntrospector{
		named:      make(map[string]*types.Named),
		memberTags: make(map[string]map[string]string),
	}
	for _, p := range pkgs {
		s.index(p)
	}
	slices.SortFunc(s.domain, func(a, b TypeRef) int { return strings.Compare(a.Key, b.Key) })
	return s, nil
}

// Classes returns the exported struct types declared by the loaded packages.
func (s *SourceIntrospector) Classes() []TypeRef {
	return slices.Clone(s.domain)
}

// Introspect builds the class for ref.
func (s *SourceIntrospector) Introspect(_ context.Context, ref TypeRef) (*Class, error) {
	s.mu.RLock()
	named, ok := s.named[ref.Key]
	s.mu.RUnlock()
	if !ok {
		if ref.IsValue() {
			return ValueClass(ref, SourceStatic), nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, ref.Key)
	}
	if _, isStruct := named.Underlying().(*types.Struct); !isStruct {
		class := ValueClass(s.refOf(named), SourceStatic)
		class.Methods = s.methodsOf(named, class.Key())
		return class, nil
	}
	return s.classOf(named), nil
}

func (s *SourceIntrospector) index(p *packages.Package) {
	if p.Types == nil {
		return
	}
	scope := p.Types.Scope()
	for _, name := range scope.Names() {
		obj, ok := scope.Lookup(name).(*types.TypeName)
		if !ok || !obj.Exported() || obj.IsAlias() {
			continue
		}
		named, ok := obj.Type().(*types.Named)
		if !ok || named.TypeParams().Len() > 0 {
			continue
		}
		if _, ok := named.Underlying().(*types.Struct); !ok {
			continue
		}
		s.domain = append(s.domain, s.refOf(named))
	}
	for _, file := range p.Syntax {
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil || len(fn.Recv.List) == 0 || fn.Body == nil || fn.Name.Name != MemberTagsMethod {
				continue
			}
			recv := receiverName(fn.Recv.List[0].Type)
			if recv == "" {
				continue
			}
			s.memberTags[p.PkgPath+"."+recv] = memberTagsLiteral(fn.Body)
		}
	}
}

func receiverName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.StarExpr:
		return receiverName(e.X)
	case *ast.Ident:
		return e.Name
	case *ast.ParenExpr:
		return receiverName(e.X)
	}
	return ""
}

// memberTagsLiteral extracts string keys and values from the map literal
// returned by a MemberTags method. Non-literal entries are skipped.
func memberTagsLiteral(body *ast.BlockStmt) map[string]string {
	out := make(map[string]string)
	ast.Inspect(body, func(n ast.Node) bool {
		ret, ok := n.(*ast.ReturnStmt)
		if !ok || len(ret.Results) != 1 {
			return true
		}
		lit, ok := ret.Results[0].(*ast.CompositeLit)
		if !ok {
			return true
		}
		for _, elt := range lit.Elts {
			kv, ok := elt.(*ast.KeyValueExpr)
			if !ok {
				continue
			}
			key, okKey := stringLiteral(kv.Key)
			value, okValue := stringLiteral(kv.Value)
			if okKey && okValue {
				out[key] = value
			}
		}
		return false
	})
	return out
}

func stringLiteral(expr ast.Expr) (string, bool) {
	lit, ok := expr.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}
	v, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", false
	}
	return v, true
}

func (s *SourceIntrospector) classOf(named *types.Named) *Class {
	ref := s.refOf(named)
	class := &Class{Ref: ref, Tags: Tags{}, Source: SourceStatic}
	st := named.Underlying().(*types.Struct)
	s.collectFields(class, st, nil, false)

	class.Methods = s.methodsOf(named, ref.Key)
	return class
}

func (s *SourceIntrospector) methodsOf(named *types.Named, key string) []Method {
	tags := s.memberTags[key]
	var methods []Method
	mset := types.NewMethodSet(types.NewPointer(named))
	for i := 0; i < mset.Len(); i++ {
		fn, ok := mset.At(i).Obj().(*types.Func)
		if !ok || !fn.Exported() || fn.Name() == MemberTagsMethod {
			continue
		}
		sig := fn.Type().(*types.Signature)
		method := Method{Name: fn.Name(), Variadic: sig.Variadic(), Tags: Tags{}}
		for p := 0; p < sig.Params().Len(); p++ {
			method.Params = append(method.Params, s.refOf(sig.Params().At(p).Type()))
		}
		for r := 0; r < sig.Results().Len(); r++ {
			method.Results = append(method.Results, s.refOf(sig.Results().At(r).Type()))
		}
		if raw, ok := tags[fn.Name()]; ok {
			method.Tags = ParseTags(raw)
		}
		methods = append(methods, method)
	}
	slices.SortFunc(methods, func(a, b Method) int { return strings.Compare(a.Name, b.Name) })
	return methods
}

// collectFields adds direct fields first, then fields promoted from
// embedded structs that are not shadowed.
func (s *SourceIntrospector) collectFields(class *Class, st *types.Struct, index []int, promoted bool) {
	var embedded []int
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if f.Name() == "_" {
			if !promoted {
				class.Tags = class.Tags.Merge(ParseTags(st.Tag(i)))
			}
			continue
		}
		if f.Embedded() {
			embedded = append(embedded, i)
			continue
		}
		if !f.Exported() {
			continue
		}
		if _, exists := class.Field(f.Name()); exists {
			continue
		}
		class.Fields = append(class.Fields, Field{
			Name:     f.Name(),
			Type:     s.refOf(f.Type()),
			Tags:     ParseTags(st.Tag(i)),
			Index:    append(slices.Clone(index), i),
			Promoted: promoted,
		})
	}
	for _, i := range embedded {
		f := st.Field(i)
		ft := types.Unalias(f.Type())
		if p, ok := ft.(*types.Pointer); ok {
			ft = types.Unalias(p.Elem())
		}
		inner, ok := ft.Underlying().(*types.Struct)
		if !ok {
			continue
		}
		if f.Exported() && !promoted {
			class.Embedded = append(class.Embedded, s.refOf(f.Type()))
		}
		s.collectFields(class, inner, append(slices.Clone(index), i), true)
	}
}

func (s *SourceIntrospector) refOf(t types.Type) TypeRef {
	return s.walkRef(t, nil)
}

// walkRef describes t. A named type met again while its underlying type is
// being described yields a ref without Elem.
func (s *SourceIntrospector) walkRef(t types.Type, visiting map[*types.Named]bool) TypeRef {
	t = types.Unalias(t)
	nillable := false
	for {
		p, ok := t.(*types.Pointer)
		if !ok {
			break
		}
		nillable = true
		t = types.Unalias(p.Elem())
	}
	switch tt := t.(type) {
	case *types.Named:
		obj := tt.Obj()
		ref := TypeRef{Key: obj.Name(), Name: obj.Name(), Nillable: nillable}
		if obj.Pkg() != nil {
			ref.Package = obj.Pkg().Path()
			ref.Key = ref.Package + "." + obj.Name()
		}
		switch ref.Key {
		case TimeKey:
			ref.Kind = KindTime
			return ref
		case DurationKey:
			ref.Kind = KindDuration
			return ref
		case "error":
			ref.Kind = KindError
			ref.Nillable = true
			return ref
		}
		if visiting[tt] {
			ref.Kind = shallowKind(tt.Underlying())
			switch tt.Underlying().(type) {
			case *types.Slice, *types.Map, *types.Interface, *types.Signature:
				ref.Nillable = true
			}
			return ref
		}
		if visiting == nil {
			visiting = make(map[*types.Named]bool)
		}
		visiting[tt] = true
		under := s.walkRef(tt.Underlying(), visiting)
		delete(visiting, tt)
		ref.Kind = under.Kind
		ref.Elem = under.Elem
		ref.Bits = under.Bits
		if under.Nillable {
			ref.Nillable = true
		}
		if ref.Kind == KindStruct || ref.IsValue() {
			s.mu.Lock()
			s.named[ref.Key] = tt
			s.mu.Unlock()
		}
		return ref
	case *types.Basic:
		return TypeRef{Key: tt.Name(), Name: tt.Name(), Kind: shallowKind(tt), Nillable: nillable, Bits: basicBits(tt)}
	case *types.Slice:
		elem := s.walkRef(tt.Elem(), visiting)
		return TypeRef{Key: "[]" + elem.Key, Name: "[]" + elem.Name, Kind: KindSlice, Elem: &elem, Nillable: true}
	case *types.Array:
		elem := s.walkRef(tt.Elem(), visiting)
		return TypeRef{Key: "[]" + elem.Key, Name: "[]" + elem.Name, Kind: KindSlice, Elem: &elem}
	case *types.Map:
		key := s.walkRef(tt.Key(), visiting)
		elem := s.walkRef(tt.Elem(), visiting)
		return TypeRef{
			Key:      "map[" + key.Key + "]" + elem.Key,
			Name:     "map[" + key.Name + "]" + elem.Name,
			Kind:     KindMap,
			Elem:     &elem,
			Nillable: true,
		}
	case *types.Struct:
		return TypeRef{Key: tt.String(), Name: "struct", Kind: KindStruct, Nillable: nillable}
	case *types.Interface:
		return TypeRef{Key: tt.String(), Name: tt.String(), Kind: KindInterface, Nillable: true}
	case *types.Signature:
		return TypeRef{Key: tt.String(), Name: "func", Kind: KindFunc, Nillable: true}
	default:
		return TypeRef{Key: t.String(), Name: t.String(), Kind: KindOther, Nillable: nillable}
	}
}

func shallowKind(t types.Type) Kind {
	switch u := t.(type) {
	case *types.Struct:
		return KindStruct
	case *types.Slice, *types.Array:
		return KindSlice
	case *types.Map:
		return KindMap
	case *types.Interface:
		return KindInterface
	case *types.Signature:
		return KindFunc
	case *types.Basic:
		info := u.Info()
		switch {
		case info&types.IsString != 0:
			return KindString
		case info&types.IsBoolean != 0:
			return KindBool
		case info&types.IsUnsigned != 0:
			return KindUint
		case info&types.IsInteger != 0:
			return KindInt
		case info&types.IsFloat != 0:
			return KindFloat
		}
	}
	return KindOther
}

func basicBits(b *types.Basic) int {
	switch b.Kind() {
	case types.Int8, types.Uint8:
		return 8
	case types.Int16, types.Uint16:
		return 16
	case types.Int32, types.Uint32, types.Float32:
		return 32
	case types.Int, types.Uint, types.Uintptr, types.Int64, types.Uint64, types.Float64:
		return 64
	}
	return 0
}

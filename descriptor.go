package svcinject

import (
	"fmt"
	"reflect"
)

// DescribeOption declares an injectable member Go reflection cannot discover on its own.
type DescribeOption func(d *declaration) error

type declaration struct {
	constructors []constructor
	properties   []propertyMember
	methods      []methodMember
}

type constructor struct {
	fn         reflect.Value
	in         []reflect.Type
	labels     []Label
	injectable bool
	returnsErr bool
}

type fieldMember struct {
	index []int
	name  string
	typ   reflect.Type
	label Label
}

type propertyMember struct {
	name   string
	label  Label
	typ    reflect.Type
	getter string
	setter string
}

type methodMember struct {
	name   string
	labels []Label
	in     []reflect.Type
}

// descriptor is the injection surface of one concrete type.
type descriptor struct {
	typ          reflect.Type
	constructors []constructor
	fields       []fieldMember
	properties   []propertyMember
	methods      []methodMember
}

// WithConstructor declares fn as a constructor. Parameter labels are positional.
func WithConstructor(fn any, labels ...Label) DescribeOption {
	return func(d *declaration) error {
		c, err := newConstructor(fn, labels, false)
		if err != nil {
			return err
		}
		d.constructors = append(d.constructors, c)
		return nil
	}
}

// WithInjectConstructor declares fn as the constructor marked for injection.
func WithInjectConstructor(fn any, labels ...Label) DescribeOption {
	return func(d *declaration) error {
		c, err := newConstructor(fn, labels, true)
		if err != nil {
			return err
		}
		d.constructors = append(d.constructors, c)
		return nil
	}
}

// WithProperty declares an injectable property backed by a Name() getter and a SetName(v) setter.
func WithProperty(name string, label Label) DescribeOption {
	return func(d *declaration) error {
		d.properties = append(d.properties, propertyMember{
			name:   name,
			label:  label,
			getter: name,
			setter: "Set" + name,
		})
		return nil
	}
}

// WithMethod declares an injectable method, invoked once per injection pass. Parameter labels are positional.
func WithMethod(name string, labels ...Label) DescribeOption {
	return func(d *declaration) error {
		d.methods = append(d.methods, methodMember{name: name, labels: labels})
		return nil
	}
}

func newConstructor(fn any, labels []Label, injectable bool) (constructor, error) {
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func || fv.IsNil() {
		return constructor{}, fmt.Errorf("%w: got %T", ErrInvalidConstructor, fn)
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		return constructor{}, fmt.Errorf("%w: variadic %v", ErrInvalidConstructor, ft)
	}
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return constructor{}, fmt.Errorf("%w: %v", ErrInvalidConstructor, ft)
	}
	in := make([]reflect.Type, ft.NumIn())
	for i := range in {
		in[i] = ft.In(i)
	}
	return constructor{
		fn:         fv,
		in:         in,
		labels:     labels,
		injectable: injectable,
		returnsErr: ft.NumOut() == 2,
	}, nil
}

// buildDescriptor analyzes t for tagged fields and resolves the declared members.
// It processes exported fields ONLY with the `di.inject` tag; the tag value is the label.
func buildDescriptor(t reflect.Type, decl *declaration) (*descriptor, error) {
	d := &descriptor{typ: t, fields: injectableFields(t)}
	if decl == nil {
		return d, nil
	}

	for _, c := range decl.constructors {
		if !c.fn.Type().Out(0).AssignableTo(t) {
			return nil, fmt.Errorf("%w: %v does not return %v", ErrInvalidConstructor, c.fn.Type(), t)
		}
		d.constructors = append(d.constructors, c)
	}

	for _, p := range decl.properties {
		getter, ok := t.MethodByName(p.getter)
		if !ok || getter.Type.NumIn() != 1 || getter.Type.NumOut() != 1 {
			return nil, fmt.Errorf("%w: getter %s on %v", ErrUnknownMember, p.getter, t)
		}
		setter, ok := t.MethodByName(p.setter)
		if !ok || setter.Type.NumIn() != 2 {
			return nil, fmt.Errorf("%w: setter %s on %v", ErrUnknownMember, p.setter, t)
		}
		p.typ = setter.Type.In(1)
		d.properties = append(d.properties, p)
	}

	for _, m := range decl.methods {
		method, ok := t.MethodByName(m.name)
		if !ok || method.Type.IsVariadic() {
			return nil, fmt.Errorf("%w: method %s on %v", ErrUnknownMember, m.name, t)
		}
		// In(0) is the receiver.
		m.in = make([]reflect.Type, method.Type.NumIn()-1)
		for i := range m.in {
			m.in[i] = method.Type.In(i + 1)
		}
		d.methods = append(d.methods, m)
	}
	return d, nil
}

func injectableFields(t reflect.Type) []fieldMember {
	st := t
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil
	}

	fields := make([]fieldMember, 0)
	for _, sf := range reflect.VisibleFields(st) {
		label, exists := sf.Tag.Lookup(string(inject))
		if !exists || sf.Anonymous {
			continue
		}
		// We only support exported fields, otherwise it requires the use of unsafe pointers.
		if !sf.IsExported() || throughPointer(st, sf.Index) {
			continue
		}
		fields = append(fields, fieldMember{
			index: sf.Index,
			name:  sf.Name,
			typ:   sf.Type,
			label: Label(label),
		})
	}
	return fields
}

// throughPointer reports whether a promoted field is reached via an embedded pointer.
func throughPointer(st reflect.Type, index []int) bool {
	for _, i := range index[:len(index)-1] {
		f := st.Field(i)
		if f.Type.Kind() == reflect.Pointer {
			return true
		}
		st = f.Type
	}
	return false
}

// selectConstructor picks the constructor used to allocate d.typ. A nil result means free allocation.
func (d *descriptor) selectConstructor() (*constructor, error) {
	var marked []*constructor
	for i := range d.constructors {
		if d.constructors[i].injectable {
			marked = append(marked, &d.constructors[i])
		}
	}
	switch {
	case len(marked) == 1:
		return marked[0], nil
	case len(marked) > 1:
		return nil, fmt.Errorf("%w: %v has %d constructors marked injectable", ErrAmbiguousConstructor, d.typ, len(marked))
	case len(d.constructors) == 1:
		return &d.constructors[0], nil
	case len(d.constructors) > 1:
		return nil, fmt.Errorf("%w: %v", ErrAmbiguousConstructor, d.typ)
	default:
		return nil, nil
	}
}

func labelAt(labels []Label, i int) Label {
	if i < len(labels) {
		return labels[i]
	}
	return NoLabel
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

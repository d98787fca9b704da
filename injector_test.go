package svcinject

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

type InjectorTestSuite struct {
	suite.Suite
	registry *Registry
}

type Engine struct {
	Power int
}

type Car struct {
	engine *Engine
	name   string
}

func NewCar(engine *Engine, name string) *Car {
	return &Car{engine: engine, name: name}
}

func NewNamedCar(name string) *Car {
	return &Car{name: name}
}

var errNoFuel = errors.New("no fuel")

func NewBrokenCar() (*Car, error) {
	return nil, errNoFuel
}

type Garage struct {
	Engine *Engine `di.inject:""`
	Spare  *Engine `di.inject:""`
	Name   string  `di.inject:"garage.name"`
}

type Radio struct {
	station string
}

func (r *Radio) Station() string     { return r.station }
func (r *Radio) SetStation(s string) { r.station = s }

type Console struct {
	engine *Engine
	name   string
	wired  int
}

func (c *Console) Wire(engine *Engine, name string) error {
	if engine == nil {
		return errNoFuel
	}
	c.engine = engine
	c.name = name
	c.wired++
	return nil
}

type Ping struct {
	Pong *Pong `di.inject:""`
}

type Pong struct {
	Ping *Ping `di.inject:""`
}

type Chicken struct{ egg *Egg }

type Egg struct{ chicken *Chicken }

func NewChicken(egg *Egg) *Chicken { return &Chicken{egg: egg} }

func NewEgg(chicken *Chicken) *Egg { return &Egg{chicken: chicken} }

type Loop struct {
	Next *Loop `di.inject:""`
}

type Warmup struct {
	Engine *Engine `di.inject:""`
	ready  bool
}

func (w *Warmup) Initialize() error {
	if w.Engine == nil {
		return errNoFuel
	}
	w.ready = true
	return nil
}

func (suite *InjectorTestSuite) SetupTest() {
	suite.registry = New(WithLogger(zaptest.NewLogger(suite.T())))
}

func TestInjectorTestSuite(t *testing.T) {
	suite.Run(t, new(InjectorTestSuite))
}

func (suite *InjectorTestSuite) materialize(register func(r *Registry)) error {
	suite.registry.BeginRegistrationBatch()
	register(suite.registry)
	return suite.registry.EndRegistrationBatch()
}

func (suite *InjectorTestSuite) TestSingleConstructor() {
	engine := &Engine{Power: 120}
	require.NoError(suite.T(), DescribeType[*Car](suite.registry, WithConstructor(NewCar, NoLabel, "car.name")))
	require.NoError(suite.T(), suite.materialize(func(r *Registry) {
		BindInstance(r, engine)
		BindInstance(r, "sedan").WithLabel("car.name")
		BindSelf[*Car](r)
	}))

	car := MustResolve[*Car](suite.registry)
	assert.Same(suite.T(), engine, car.engine)
	assert.Equal(suite.T(), "sedan", car.name)
}

func (suite *InjectorTestSuite) TestUnresolvedConstructorParameterIsZero() {
	require.NoError(suite.T(), DescribeType[*Car](suite.registry, WithConstructor(NewCar)))
	require.NoError(suite.T(), suite.materialize(func(r *Registry) {
		BindSelf[*Car](r)
	}))

	car := MustResolve[*Car](suite.registry)
	assert.Nil(suite.T(), car.engine)
	assert.Empty(suite.T(), car.name)
}

func (suite *InjectorTestSuite) TestAmbiguousConstructors() {
	require.NoError(suite.T(), DescribeType[*Car](suite.registry, WithConstructor(NewCar), WithConstructor(NewNamedCar)))
	err := suite.materialize(func(r *Registry) {
		BindSelf[*Car](r)
	})
	require.ErrorIs(suite.T(), err, ErrAmbiguousConstructor)
}

func (suite *InjectorTestSuite) TestMarkedConstructorWins() {
	require.NoError(suite.T(), DescribeType[*Car](suite.registry,
		WithConstructor(NewCar),
		WithInjectConstructor(NewNamedCar),
	))
	require.NoError(suite.T(), suite.materialize(func(r *Registry) {
		BindInstance(r, &Engine{})
		BindSelf[*Car](r).WithArguments("coupe")
	}))

	car := MustResolve[*Car](suite.registry)
	assert.Nil(suite.T(), car.engine)
	assert.Equal(suite.T(), "coupe", car.name)
}

func (suite *InjectorTestSuite) TestTwoMarkedConstructorsAreAmbiguous() {
	require.NoError(suite.T(), DescribeType[*Car](suite.registry,
		WithInjectConstructor(NewCar),
		WithInjectConstructor(NewNamedCar),
	))
	_, err := suite.registry.CreateInstance(TypeOf[*Car]())
	require.ErrorIs(suite.T(), err, ErrAmbiguousConstructor)
}

func (suite *InjectorTestSuite) TestInvalidConstructors() {
	err := DescribeType[*Car](suite.registry, WithConstructor(42))
	require.ErrorIs(suite.T(), err, ErrInvalidConstructor)

	err = DescribeType[*Car](suite.registry, WithConstructor(func(...string) *Car { return nil }))
	require.ErrorIs(suite.T(), err, ErrInvalidConstructor)

	err = DescribeType[*Car](suite.registry, WithConstructor(func() (*Car, string) { return nil, "" }))
	require.ErrorIs(suite.T(), err, ErrInvalidConstructor)

	require.NoError(suite.T(), DescribeType[*Car](suite.registry, WithConstructor(func() *Engine { return nil })))
	_, err = CreateInstanceAs[*Car](suite.registry)
	require.ErrorIs(suite.T(), err, ErrInvalidConstructor)
}

func (suite *InjectorTestSuite) TestConstructorError() {
	require.NoError(suite.T(), DescribeType[*Car](suite.registry, WithConstructor(NewBrokenCar)))
	err := suite.materialize(func(r *Registry) {
		BindSelf[*Car](r)
	})
	require.ErrorIs(suite.T(), err, errNoFuel)
	assert.False(suite.T(), suite.registry.HasResolver(TypeOf[*Car]()))
}

func (suite *InjectorTestSuite) TestFieldInjection() {
	engine := &Engine{Power: 90}
	require.NoError(suite.T(), suite.materialize(func(r *Registry) {
		BindSelf[*Garage](r)
		BindInstance(r, engine)
		BindInstance(r, "north").WithLabel("garage.name")
	}))

	garage := MustResolve[*Garage](suite.registry)
	assert.Same(suite.T(), engine, garage.Engine)
	assert.Same(suite.T(), engine, garage.Spare)
	assert.Equal(suite.T(), "north", garage.Name)
}

func (suite *InjectorTestSuite) TestOverridesTakePrecedence() {
	override := &Engine{Power: 9}
	require.NoError(suite.T(), suite.materialize(func(r *Registry) {
		BindInstance(r, &Engine{Power: 1})
		BindSelf[*Garage](r).
			WithArguments(override).
			WithLazyArguments(func() []any { return []any{&Engine{Power: 2}, "lazy"} })
	}))

	garage := MustResolve[*Garage](suite.registry)
	// A single override satisfies every matching member.
	assert.Same(suite.T(), override, garage.Engine)
	assert.Same(suite.T(), override, garage.Spare)
	assert.Equal(suite.T(), "lazy", garage.Name)
}

func (suite *InjectorTestSuite) TestLazyArgumentsEvaluatedPerConstruction() {
	calls := 0
	require.NoError(suite.T(), suite.materialize(func(r *Registry) {
		BindSelf[*Garage](r).Transient().WithLazyArguments(func() []any {
			calls++
			return []any{&Engine{Power: calls}}
		})
	}))

	first := MustResolve[*Garage](suite.registry)
	second := MustResolve[*Garage](suite.registry)
	assert.Equal(suite.T(), 1, first.Engine.Power)
	assert.Equal(suite.T(), 2, second.Engine.Power)
}

func (suite *InjectorTestSuite) TestPresetFieldsAreKept() {
	preset := &Engine{Power: 7}
	require.NoError(suite.T(), suite.materialize(func(r *Registry) {
		BindInstance(r, &Engine{Power: 1})
		BindInstance(r, &Garage{Engine: preset})
	}))

	garage := MustResolve[*Garage](suite.registry)
	assert.Same(suite.T(), preset, garage.Engine)
	assert.Equal(suite.T(), 1, garage.Spare.Power)
}

func (suite *InjectorTestSuite) TestPropertyInjection() {
	require.NoError(suite.T(), DescribeType[*Radio](suite.registry, WithProperty("Station", "radio.station")))
	require.NoError(suite.T(), suite.materialize(func(r *Registry) {
		BindInstance(r, "jazz").WithLabel("radio.station")
		BindSelf[*Radio](r).Transient()
		BindInstance(r, &Radio{station: "news"}).WithLabel("tuned")
	}))

	radio := MustResolve[*Radio](suite.registry)
	assert.Equal(suite.T(), "jazz", radio.Station())

	tuned, err := ResolveAs[*Radio](suite.registry, Labeled("tuned"))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "news", tuned.Station())
}

func (suite *InjectorTestSuite) TestPropertyWithoutValueIsSkipped() {
	require.NoError(suite.T(), DescribeType[*Radio](suite.registry, WithProperty("Station", "radio.station")))

	radio, err := CreateInstanceAs[*Radio](suite.registry)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), radio.Station())
}

func (suite *InjectorTestSuite) TestUnknownMembers() {
	require.NoError(suite.T(), DescribeType[*Radio](suite.registry, WithProperty("Volume", NoLabel)))
	_, err := CreateInstanceAs[*Radio](suite.registry)
	require.ErrorIs(suite.T(), err, ErrUnknownMember)

	require.NoError(suite.T(), DescribeType[*Console](suite.registry, WithMethod("Missing")))
	_, err = CreateInstanceAs[*Console](suite.registry)
	require.ErrorIs(suite.T(), err, ErrUnknownMember)
}

func (suite *InjectorTestSuite) TestMethodInjection() {
	engine := &Engine{Power: 3}
	require.NoError(suite.T(), DescribeType[*Console](suite.registry, WithMethod("Wire", NoLabel, "console.name")))
	require.NoError(suite.T(), suite.materialize(func(r *Registry) {
		BindInstance(r, engine)
		BindInstance(r, "main").WithLabel("console.name")
		BindSelf[*Console](r)
	}))

	console := MustResolve[*Console](suite.registry)
	assert.Same(suite.T(), engine, console.engine)
	assert.Equal(suite.T(), "main", console.name)
	assert.Equal(suite.T(), 1, console.wired)

	// Methods run on every injection pass.
	require.NoError(suite.T(), suite.registry.ResolveDependencies(console))
	assert.Equal(suite.T(), 2, console.wired)
}

func (suite *InjectorTestSuite) TestMethodErrorPropagates() {
	require.NoError(suite.T(), DescribeType[*Console](suite.registry, WithMethod("Wire")))
	err := suite.materialize(func(r *Registry) {
		BindSelf[*Console](r)
	})
	require.ErrorIs(suite.T(), err, errNoFuel)
}

func (suite *InjectorTestSuite) TestFieldCycleWithinBatch() {
	require.NoError(suite.T(), suite.materialize(func(r *Registry) {
		BindSelf[*Ping](r)
		BindSelf[*Pong](r)
	}))

	ping := MustResolve[*Ping](suite.registry)
	pong := MustResolve[*Pong](suite.registry)
	require.NotNil(suite.T(), ping.Pong)
	assert.Same(suite.T(), pong, ping.Pong)
	assert.Same(suite.T(), ping, pong.Ping)
}

func (suite *InjectorTestSuite) TestConstructorCycle() {
	require.NoError(suite.T(), DescribeType[*Chicken](suite.registry, WithConstructor(NewChicken)))
	require.NoError(suite.T(), DescribeType[*Egg](suite.registry, WithConstructor(NewEgg)))

	err := suite.materialize(func(r *Registry) {
		BindSelf[*Chicken](r)
		BindSelf[*Egg](r)
	})
	require.ErrorIs(suite.T(), err, ErrConstructorCycle)
}

func (suite *InjectorTestSuite) TestTransientConstructorCycle() {
	require.NoError(suite.T(), DescribeType[*Chicken](suite.registry, WithConstructor(NewChicken)))
	require.NoError(suite.T(), DescribeType[*Egg](suite.registry, WithConstructor(NewEgg)))
	require.NoError(suite.T(), suite.materialize(func(r *Registry) {
		BindSelf[*Chicken](r).Transient()
		BindSelf[*Egg](r).Transient()
	}))

	_, err := ResolveAs[*Chicken](suite.registry)
	require.ErrorIs(suite.T(), err, ErrConstructorCycle)
	assert.Contains(suite.T(), err.Error(), "*svcinject.Chicken -> *svcinject.Egg -> *svcinject.Chicken")
}

func (suite *InjectorTestSuite) TestTransientFieldCycleIsBounded() {
	require.NoError(suite.T(), suite.materialize(func(r *Registry) {
		BindSelf[*Loop](r).Transient()
	}))

	_, err := ResolveAs[*Loop](suite.registry)
	require.ErrorIs(suite.T(), err, ErrResolveDepthExceeded)

	// The registry stays usable.
	require.NoError(suite.T(), suite.materialize(func(r *Registry) {
		BindSelf[*Engine](r)
	}))
	assert.NotNil(suite.T(), MustResolve[*Engine](suite.registry))
}

func (suite *InjectorTestSuite) TestInitializer() {
	require.NoError(suite.T(), suite.materialize(func(r *Registry) {
		BindSelf[*Engine](r)
		BindSelf[*Warmup](r)
	}))
	assert.True(suite.T(), MustResolve[*Warmup](suite.registry).ready)
}

func (suite *InjectorTestSuite) TestFactoryReturningTypedNil() {
	called := false
	require.NoError(suite.T(), suite.materialize(func(r *Registry) {
		BindFactory(r, func() (*Warmup, error) { return nil, nil }).
			WithCallback(func(any) { called = true })
		BindFactory(r, func() (*Radio, error) { return nil, nil }).Transient()
	}))
	assert.False(suite.T(), called)

	v, err := suite.registry.ResolveSafe(TypeOf[*Warmup]())
	require.NoError(suite.T(), err)
	assert.True(suite.T(), v == nil, "expected untyped nil, got %#v", v)

	v, err = suite.registry.ResolveSafe(TypeOf[*Radio]())
	require.NoError(suite.T(), err)
	assert.True(suite.T(), v == nil, "expected untyped nil, got %#v", v)
}

func (suite *InjectorTestSuite) TestConstructorReturningTypedNil() {
	require.NoError(suite.T(), DescribeType[*Warmup](suite.registry,
		WithConstructor(func() *Warmup { return nil })))

	v, err := suite.registry.CreateInstance(TypeOf[*Warmup]())
	require.NoError(suite.T(), err)
	assert.True(suite.T(), v == nil, "expected untyped nil, got %#v", v)
}

func (suite *InjectorTestSuite) TestTypedNilInstanceIsRejected() {
	suite.registry.BeginRegistrationBatch()
	reg := BindInstance[*Engine](suite.registry, nil)
	assert.ErrorIs(suite.T(), reg.Err(), ErrInstanceIsNil)
	require.ErrorIs(suite.T(), suite.registry.EndRegistrationBatch(), ErrInstanceIsNil)
}

func (suite *InjectorTestSuite) TestPanickingFactoryDoesNotLeaveRegistrationConstructing() {
	suite.registry.BeginRegistrationBatch()
	BindFactory(suite.registry, func() (*Engine, error) { panic("engine exploded") })

	require.Panics(suite.T(), func() {
		_ = suite.registry.Resolve(TypeOf[*Engine]())
	})

	v, err := suite.registry.ResolveSafe(TypeOf[*Engine]())
	require.NoError(suite.T(), err)
	assert.Nil(suite.T(), v)
	require.NoError(suite.T(), suite.registry.EndRegistrationBatch())
}

func (suite *InjectorTestSuite) TestInitializerError() {
	err := suite.materialize(func(r *Registry) {
		BindSelf[*Warmup](r)
	})
	require.ErrorIs(suite.T(), err, errNoFuel)
	assert.Contains(suite.T(), err.Error(), "initializer for *svcinject.Warmup failed")
}

func (suite *InjectorTestSuite) TestCreateInstance() {
	require.NoError(suite.T(), suite.materialize(func(r *Registry) {
		BindInstance(r, &Engine{Power: 1})
	}))

	override := &Engine{Power: 3}
	garage, err := CreateInstanceAs[*Garage](suite.registry, override, "west")
	require.NoError(suite.T(), err)
	assert.Same(suite.T(), override, garage.Engine)
	assert.Equal(suite.T(), "west", garage.Name)
	assert.False(suite.T(), suite.registry.HasResolver(TypeOf[*Garage]()))

	plain, err := CreateInstanceAs[*Garage](suite.registry)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, plain.Engine.Power)
	assert.NotSame(suite.T(), garage, plain)

	_, err = suite.registry.CreateInstance(nil)
	require.ErrorIs(suite.T(), err, ErrContractTypeIsNil)
}

func (suite *InjectorTestSuite) TestCreateInstanceOverridesConstructorParameter() {
	registered := &Engine{Power: 1}
	override := &Engine{Power: 2}
	require.NoError(suite.T(), DescribeType[*Car](suite.registry, WithConstructor(NewCar)))
	require.NoError(suite.T(), suite.materialize(func(r *Registry) {
		BindInstance(r, registered)
	}))

	car, err := CreateInstanceAs[*Car](suite.registry, override)
	require.NoError(suite.T(), err)
	assert.Same(suite.T(), override, car.engine)

	car, err = CreateInstanceAs[*Car](suite.registry)
	require.NoError(suite.T(), err)
	assert.Same(suite.T(), registered, car.engine)
}

func (suite *InjectorTestSuite) TestResolveDependenciesOfExternalInstance() {
	engine := &Engine{Power: 5}
	require.NoError(suite.T(), suite.materialize(func(r *Registry) {
		BindInstance(r, engine)
	}))

	garage := &Garage{}
	require.NoError(suite.T(), suite.registry.ResolveDependencies(garage))
	assert.Same(suite.T(), engine, garage.Engine)
	require.NoError(suite.T(), suite.registry.ResolveDependencies(nil))
}

type stage struct {
	scope      Scope
	global     bool
	components []any
	destroyed  bool
}

type Widget struct {
	stage  *stage
	Engine *Engine `di.inject:""`
}

type fakeAllocator struct {
	stages    []*stage
	noCarrier bool
}

func (a *fakeAllocator) IsManaged(t reflect.Type) bool {
	return t == TypeOf[*Widget]()
}

func (a *fakeAllocator) NewCarrier(scope Scope, global bool) Carrier {
	if a.noCarrier {
		return nil
	}
	s := &stage{scope: scope, global: global}
	a.stages = append(a.stages, s)
	return s
}

func (a *fakeAllocator) CreateComponent(_ reflect.Type, carrier Carrier) (any, error) {
	s := carrier.(*stage)
	w := &Widget{stage: s}
	s.components = append(s.components, w)
	return w, nil
}

func (a *fakeAllocator) DestroyCarrier(carrier Carrier) {
	carrier.(*stage).destroyed = true
}

func TestManagedComponents(t *testing.T) {
	allocator := &fakeAllocator{}
	r := New(WithAllocator(allocator), WithLogger(zaptest.NewLogger(t)))
	engine := &Engine{Power: 4}

	r.BeginRegistrationBatch()
	BindInstance(r, engine)
	BindSelf[*Widget](r).ScopedTo("level-1")
	BindSelf[*Widget](r).WithLabel("hud")
	require.NoError(t, r.EndRegistrationBatch())

	scoped, err := ResolveInScopeAs[*Widget](r, "level-1")
	require.NoError(t, err)
	require.NotNil(t, scoped.stage)
	assert.Equal(t, Scope("level-1"), scoped.stage.scope)
	assert.False(t, scoped.stage.global)
	assert.Same(t, engine, scoped.Engine)

	hud, err := ResolveAs[*Widget](r, Labeled("hud"))
	require.NoError(t, err)
	assert.True(t, hud.stage.global)
	require.Len(t, allocator.stages, 2)

	r.ResetScope("level-1")
	assert.True(t, scoped.stage.destroyed)
	assert.False(t, hud.stage.destroyed)

	r.ResetAll()
	assert.True(t, hud.stage.destroyed)
}

func TestManagedComponentWithoutCarrier(t *testing.T) {
	r := New(WithAllocator(&fakeAllocator{noCarrier: true}))

	r.BeginRegistrationBatch()
	BindSelf[*Widget](r).ScopedTo("menu")
	err := r.EndRegistrationBatch()
	require.ErrorIs(t, err, ErrMissingCarrier)
	assert.Contains(t, err.Error(), `scope "menu"`)
}

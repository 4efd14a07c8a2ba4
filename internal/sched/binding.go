package sched

// Binding is the callable target of a task.
//
// init reports whether the target is installed. A task whose binding fails
// init never calls it; this is how a subsystem leaves a feature disabled.
type Binding interface {
	init() bool
	call()
}

// Descriptor bundles a target type, the method to run on it and its
// schedule. Implementations are usually empty structs:
//
//	type lightingTask struct{}
//
//	func (lightingTask) Invoke(l *Lighting)   { l.tick() }
//	func (lightingTask) Schedule() sched.Schedule { return lightingSchedule }
type Descriptor[T any] interface {
	Invoke(obj *T)
	Schedule() Schedule
}

type funcBinding struct {
	fn func()
}

func (b funcBinding) init() bool { return b.fn != nil }
func (b funcBinding) call()      { b.fn() }

// methodBinding holds a back-reference to obj; the object must outlive the task.
type methodBinding[T any] struct {
	obj    *T
	method func(*T)
}

func (b methodBinding[T]) init() bool { return b.obj != nil && b.method != nil }
func (b methodBinding[T]) call()      { b.method(b.obj) }

// Func binds a plain function.
func Func(fn func()) Binding { return funcBinding{fn: fn} }

// Method binds a method expression such as (*Lighting).tick to obj.
func Method[T any](obj *T, method func(*T)) Binding {
	return methodBinding[T]{obj: obj, method: method}
}

// Described binds obj to the method named by descriptor D.
func Described[D Descriptor[T], T any](obj *T) Binding {
	var d D
	return methodBinding[T]{obj: obj, method: d.Invoke}
}

package scriptcore

import "testing"

const typA ComponentType = 1
const typB ComponentType = 2

func TestEntityWorld_CreateAndComponentLifecycle(t *testing.T) {
	w := NewEntityWorld()

	e := w.CreateEntity()
	if !w.IsAlive(e) {
		t.Fatalf("newly created entity is not alive")
	}

	w.SetComponent(e, typA, "hello")
	v, ok := w.GetComponent(e, typA)
	if !ok || v != "hello" {
		t.Fatalf("got (%v, %v), want (hello, true)", v, ok)
	}
	if !w.HasComponent(e, typA) {
		t.Fatalf("HasComponent false after SetComponent")
	}

	w.RemoveComponent(e, typA)
	if w.HasComponent(e, typA) {
		t.Fatalf("component survived RemoveComponent")
	}
}

func TestEntityWorld_DestroyEntityRemovesAllComponentsAndFreesID(t *testing.T) {
	w := NewEntityWorld()

	e := w.CreateEntity()
	w.SetComponent(e, typA, 1)
	w.SetComponent(e, typB, 2)

	w.DestroyEntity(e)

	if w.IsAlive(e) {
		t.Fatalf("entity still alive after DestroyEntity")
	}
	if w.HasComponent(e, typA) || w.HasComponent(e, typB) {
		t.Fatalf("components survived entity destruction")
	}
}

func TestEntityWorld_DestroyEntityInvokesHookBeforeFreeingID(t *testing.T) {
	w := NewEntityWorld()

	var sawAliveDuringHook bool
	w.OnDestroy(func(id EntityID) {
		sawAliveDuringHook = w.IsAlive(id)
	})

	e := w.CreateEntity()
	w.DestroyEntity(e)

	if !sawAliveDuringHook {
		t.Fatalf("destroy hook observed the entity as already dead")
	}
}

func TestEntityWorld_DestroyedIDIsReusedOnlyAfterFreeing(t *testing.T) {
	w := NewEntityWorld()

	e1 := w.CreateEntity()
	w.DestroyEntity(e1)
	e2 := w.CreateEntity()

	if e2 != e1 {
		t.Fatalf("expected id reuse, got e1=%d e2=%d", e1, e2)
	}
	if !w.IsAlive(e2) {
		t.Fatalf("reused id is not alive")
	}
}

func TestEntityWorld_ViewIsSafeDuringMutation(t *testing.T) {
	w := NewEntityWorld()

	e1 := w.CreateEntity()
	e2 := w.CreateEntity()
	w.SetComponent(e1, typA, 1)
	w.SetComponent(e2, typA, 2)

	view := w.View(typA)
	if len(view) != 2 {
		t.Fatalf("got %d slots, want 2", len(view))
	}

	// Mutating the store after taking the snapshot must not affect it.
	w.RemoveComponent(e1, typA)
	if len(view) != 2 {
		t.Fatalf("snapshot was affected by a later mutation")
	}
}

func TestEntityWorld_SwapRemoveKeepsRemainingComponentsIntact(t *testing.T) {
	w := NewEntityWorld()

	e1 := w.CreateEntity()
	e2 := w.CreateEntity()
	e3 := w.CreateEntity()
	w.SetComponent(e1, typA, "one")
	w.SetComponent(e2, typA, "two")
	w.SetComponent(e3, typA, "three")

	w.RemoveComponent(e1, typA) // swap-removes with the last dense entry

	v2, ok2 := w.GetComponent(e2, typA)
	v3, ok3 := w.GetComponent(e3, typA)
	if !ok2 || v2 != "two" {
		t.Fatalf("e2 component corrupted after swap-remove: %v %v", v2, ok2)
	}
	if !ok3 || v3 != "three" {
		t.Fatalf("e3 component corrupted after swap-remove: %v %v", v3, ok3)
	}
}

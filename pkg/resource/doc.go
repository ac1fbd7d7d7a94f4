// Package resource manages one REST collection as reactive state.
//
// A Resource fetches `GET endpoint+params` on construction and whenever its
// params change, keeps the last successful collection visible while a
// refetch is in flight, and exposes create/update/remove as fire-and-forget
// calls whose outcomes show up only in reactive loading and error cells.
//
// Every mutation kind runs through its own channel:
//
//   - Behavior decides how concurrent calls of the same kind are flattened:
//     concat (queue), merge (parallel), switch (cancel previous) or exhaust
//     (drop while busy).
//   - Strategy decides how the local collection follows the server:
//     optimistic (apply first, roll back on failure), pessimistic (reload
//     after the server confirms) or incremental (patch from the response).
//
// Typical usage:
//
//	client, _ := httpclient.New[Todo, string](httpclient.WithBaseURL("http://localhost:8080"))
//	todos, err := resource.New[Todo, string]("/api/v1/todos", client, resource.Options[Todo, string]{
//	    Strategy: resource.StrategyOptimistic,
//	    Create: resource.CreateOptions[Todo, string]{
//	        ID: resource.IDOptions[Todo, string]{Generator: resource.UUIDGenerator()},
//	    },
//	    Remove: resource.KindOptions{Behavior: resource.BehaviorExhaust},
//	})
//	defer todos.Destroy()
//
//	todos.Values().Subscribe(func(items []Todo) { render(items) })
//	todos.Create(Todo{Description: "write docs"})
package resource

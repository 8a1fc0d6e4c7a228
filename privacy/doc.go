// Package privacy provides access policies evaluated inside a model's
// mutation pipeline.
//
// Policies run before the store write, so access control lives next to
// the schema instead of being re-implemented at every call site.
//
// # Core Concepts
//
// The privacy layer is built around three pieces:
//
//   - Policy: an ordered chain of rules guarding mutations
//   - Rule: answers Allow, Deny or Skip for one mutation
//   - Viewer: the authenticated actor, carried in the context
//
// # Enforcing Policies
//
// Enforce installs a policy as a pre hook on a registered model:
//
//	err := reg.Extend("Post", privacy.Enforce(privacy.Policy{
//		privacy.DenyIfNoViewer(),
//		privacy.HasRole("admin"),
//		privacy.IsOwner("author"),
//		privacy.AlwaysDenyRule(),
//	})...)
//
// # Rule Evaluation
//
// Rules run in order until one returns a final decision:
//
//   - Allow grants access and stops evaluation
//   - Deny rejects access and stops evaluation
//   - Skip abstains and passes to the next rule
//
// A chain that runs out of rules permits the mutation; append
// AlwaysDenyRule for deny-by-default policies.
//
// # Viewers
//
// The viewer travels in the context and is read by the identity-aware
// rules:
//
//	ctx := privacy.WithViewer(ctx, &privacy.StaticViewer{
//		UserID:    "user-123",
//		UserRoles: []string{"editor"},
//	})
//	_, err := posts.Create(ctx, doc)
//
// # Denials
//
// A rejected mutation surfaces as an error wrapping Deny:
//
//	if errors.Is(err, privacy.Deny) {
//		// access was rejected by policy
//	}
package privacy

package forum

// Owner identifies the author of a question or reply.
type Owner struct {
	ID    string
	Email string
}

// CanMutate reports whether actor may edit content owned by owner. Only the
// author may edit, admins included.
func CanMutate(actor Identity, owner Owner) bool {
	return sameUser(actor, owner)
}

// CanDelete reports whether actor may delete content owned by owner: the
// author or any admin.
func CanDelete(actor Identity, owner Owner) bool {
	return sameUser(actor, owner) || actor.Role == RoleAdmin
}

// sameUser compares stable ids when both sides carry one and falls back to
// email otherwise.
func sameUser(actor Identity, owner Owner) bool {
	if actor.UserID != "" && owner.ID != "" {
		return actor.UserID == owner.ID
	}
	return actor.Email != "" && actor.Email == owner.Email
}

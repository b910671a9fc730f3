package comments

import (
	"html/template"

	"restkit/internal/models"
	"restkit/internal/resource"
	"restkit/internal/utils"
)

// ReactionRef identifies one of the caller's own reactions in a projection.
type ReactionRef struct {
	ID   uint                `json:"id"`
	Type models.ReactionType `json:"type"`
}

// View is the request-scoped read model served per comment: the comment,
// its author's display name, the rendered body, the caller's reactions to
// it (empty for unauthenticated callers) and, for top-level reads only,
// the newest replies one level deep.
type View struct {
	Comment       models.Comment `json:"comment"`
	UserName      string         `json:"user_name"`
	BodyHTML      template.HTML  `json:"body_html"`
	UserReactions []ReactionRef  `json:"user_reactions"`
	ChildComments []View         `json:"child_comments,omitempty"`
}

func (s *Service) buildViews(caller resource.Caller, rows []models.Comment, withChildren bool) ([]View, error) {
	if len(rows) == 0 {
		return []View{}, nil
	}

	ids, _ := collectIDs(rows)

	var childMap map[uint][]models.Comment
	all := append([]models.Comment{}, rows...)
	if withChildren {
		var err error
		childMap, err = s.childrenFor(ids)
		if err != nil {
			return nil, err
		}
		for _, kids := range childMap {
			all = append(all, kids...)
		}
	}

	allIDs, allUserIDs := collectIDs(all)

	names, err := s.usernames(allUserIDs)
	if err != nil {
		return nil, err
	}
	reacts, err := s.callerReactions(caller, allIDs)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(rows))
	for _, row := range rows {
		v := projectView(row, names, reacts)
		for _, kid := range childMap[row.ID] {
			v.ChildComments = append(v.ChildComments, projectView(kid, names, reacts))
		}
		views = append(views, v)
	}
	return views, nil
}

func projectView(row models.Comment, names map[uint]string, reacts map[uint][]ReactionRef) View {
	userReactions := reacts[row.ID]
	if userReactions == nil {
		userReactions = []ReactionRef{}
	}
	return View{
		Comment:       row,
		UserName:      names[row.UserID],
		BodyHTML:      utils.RenderMarkdown(row.Body),
		UserReactions: userReactions,
	}
}

func (s *Service) usernames(userIDs []uint) (map[uint]string, error) {
	var users []models.User
	if err := s.db.Select("id", "username").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names, nil
}

func (s *Service) callerReactions(caller resource.Caller, commentIDs []uint) (map[uint][]ReactionRef, error) {
	if !caller.Authenticated {
		return map[uint][]ReactionRef{}, nil
	}

	var rows []models.Reaction
	err := s.db.Where("parent_id IN ? AND user_id = ?", commentIDs, caller.UserID).
		Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}

	reacts := make(map[uint][]ReactionRef, len(rows))
	for _, r := range rows {
		reacts[r.ParentID] = append(reacts[r.ParentID], ReactionRef{ID: r.ID, Type: r.Type})
	}
	return reacts, nil
}

package handlers

import (
	"context"
	"sort"
	"strings"
	"time"

	"aidirectory/db"
	"aidirectory/models"
)

// memStore is an in-memory Store with the same error contract as *db.Store.
type memStore struct {
	next       int64
	users      map[int64]*models.User
	categories map[int64]*models.Category
	industries map[int64]*models.Industry
	tools      map[int64]*models.Tool
	reviews    map[int64]*models.Review
	favorites  map[int64]*models.Favorite
	guides     map[int64]*models.Guide
	subs       map[int64]*models.Subscription
	txns       []models.PaymentTransaction
	activity   []models.ActivityLog

	dashboardCalls int
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		users:      map[int64]*models.User{},
		categories: map[int64]*models.Category{},
		industries: map[int64]*models.Industry{},
		tools:      map[int64]*models.Tool{},
		reviews:    map[int64]*models.Review{},
		favorites:  map[int64]*models.Favorite{},
		guides:     map[int64]*models.Guide{},
		subs:       map[int64]*models.Subscription{},
	}
}

func (m *memStore) id() int64 {
	m.next++
	return m.next
}

func paginate[T any](items []T, p models.Page) []T {
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func sortedKeys[T any](items map[int64]T) []int64 {
	keys := make([]int64, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// users

func (m *memStore) CreateUser(_ context.Context, u *models.User) error {
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return db.ErrConflict
		}
	}
	if u.IndustryID != nil {
		if _, ok := m.industries[*u.IndustryID]; !ok {
			return db.ErrInvalidReference
		}
	}
	u.ID = m.id()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memStore) UpdateUser(ctx context.Context, id int64, p models.UserPatch) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if p.IndustryID != nil {
		if _, ok := m.industries[*p.IndustryID]; !ok {
			return nil, db.ErrInvalidReference
		}
		u.IndustryID = p.IndustryID
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Company != nil {
		u.Company = *p.Company
	}
	if p.JobTitle != nil {
		u.JobTitle = *p.JobTitle
	}
	if p.IsAdmin != nil {
		u.IsAdmin = *p.IsAdmin
	}
	if p.SubscriptionTier != nil {
		now := time.Now()
		u.SubscriptionTier = *p.SubscriptionTier
		u.SubscriptionStartDate = &now
		u.SubscriptionEndDate = nil
		for _, s := range m.subs {
			if s.UserID == id && s.Status == models.SubscriptionActive {
				s.Status = models.SubscriptionCanceled
				s.CancelAtPeriodEnd = false
				if now.Before(s.CurrentPeriodEnd) {
					s.CurrentPeriodEnd = now
				}
			}
		}
	}
	return m.GetUser(ctx, id)
}

func (m *memStore) UpdatePassword(_ context.Context, id int64, hash string) error {
	u, ok := m.users[id]
	if !ok {
		return db.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memStore) DeleteUser(_ context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.users, id)
	touched := map[int64]bool{}
	for rid, r := range m.reviews {
		if r.UserID == id {
			touched[r.ToolID] = true
			delete(m.reviews, rid)
		}
	}
	for fid, f := range m.favorites {
		if f.UserID == id {
			delete(m.favorites, fid)
		}
	}
	for toolID := range touched {
		m.recompute(toolID)
	}
	return nil
}

func (m *memStore) ListUsers(_ context.Context, f models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, id := range sortedKeys(m.users) {
		u := m.users[id]
		if f.Tier != "" && u.SubscriptionTier != f.Tier {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(u.Email+" "+u.FirstName+" "+u.LastName), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *u)
	}
	return paginate(out, f.Page), len(out), nil
}

func (m *memStore) LogActivity(_ context.Context, userID int64, activityType, details string) error {
	m.activity = append(m.activity, models.ActivityLog{
		ID: m.id(), UserID: userID, ActivityType: activityType, Details: details, CreatedAt: time.Now(),
	})
	return nil
}

func (m *memStore) ListActivity(_ context.Context, limit int) ([]models.ActivityLog, error) {
	out := []models.ActivityLog{}
	for i := len(m.activity) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.activity[i])
	}
	return out, nil
}

// catalog

func (m *memStore) ListCategories(context.Context) ([]models.Category, error) {
	out := []models.Category{}
	for _, id := range sortedKeys(m.categories) {
		c := *m.categories[id]
		for _, t := range m.tools {
			if t.CategoryID != nil && *t.CategoryID == id {
				c.ToolCount++
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memStore) GetCategory(_ context.Context, id int64) (*models.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) CreateCategory(_ context.Context, c *models.Category) error {
	for _, existing := range m.categories {
		if existing.Name == c.Name {
			return db.ErrConflict
		}
	}
	c.ID = m.id()
	cp := *c
	m.categories[c.ID] = &cp
	return nil
}

func (m *memStore) UpdateCategory(ctx context.Context, id int64, p models.CategoryPatch) (*models.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Icon != nil {
		c.Icon = *p.Icon
	}
	return m.GetCategory(ctx, id)
}

func (m *memStore) DeleteCategory(_ context.Context, id int64) error {
	if _, ok := m.categories[id]; !ok {
		return db.ErrNotFound
	}
	for _, t := range m.tools {
		if t.CategoryID != nil && *t.CategoryID == id {
			return db.ErrInUse
		}
	}
	delete(m.categories, id)
	return nil
}

func (m *memStore) ListIndustries(context.Context) ([]models.Industry, error) {
	out := []models.Industry{}
	for _, id := range sortedKeys(m.industries) {
		out = append(out, *m.industries[id])
	}
	return out, nil
}

func (m *memStore) GetIndustry(_ context.Context, id int64) (*models.Industry, error) {
	i, ok := m.industries[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (m *memStore) CreateIndustry(_ context.Context, i *models.Industry) error {
	for _, existing := range m.industries {
		if existing.Name == i.Name {
			return db.ErrConflict
		}
	}
	i.ID = m.id()
	cp := *i
	m.industries[i.ID] = &cp
	return nil
}

func (m *memStore) UpdateIndustry(ctx context.Context, id int64, p models.IndustryPatch) (*models.Industry, error) {
	i, ok := m.industries[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if p.Name != nil {
		i.Name = *p.Name
	}
	if p.Description != nil {
		i.Description = *p.Description
	}
	return m.GetIndustry(ctx, id)
}

func (m *memStore) DeleteIndustry(_ context.Context, id int64) error {
	if _, ok := m.industries[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.industries, id)
	return nil
}

// tools

func (m *memStore) ListTools(_ context.Context, f models.ToolFilter) ([]models.Tool, int, error) {
	out := []models.Tool{}
	for _, id := range sortedKeys(m.tools) {
		t := m.tools[id]
		if f.CategoryID != 0 && (t.CategoryID == nil || *t.CategoryID != f.CategoryID) {
			continue
		}
		if f.AccessLevel != "" && t.AccessLevel != f.AccessLevel {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(t.Name+" "+t.Description), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		less := out[i].Name < out[j].Name
		if f.Sort == models.SortRating {
			less = out[i].Rating < out[j].Rating
		}
		if f.Desc {
			return !less
		}
		return less
	})
	return paginate(out, f.Page), len(out), nil
}

func (m *memStore) GetTool(_ context.Context, id int64) (*models.Tool, error) {
	t, ok := m.tools[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) GetToolDetail(ctx context.Context, id int64) (*models.Tool, error) {
	t, err := m.GetTool(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Guides, _ = m.ListGuides(ctx, id)
	for _, rid := range sortedKeys(m.reviews) {
		if r := m.reviews[rid]; r.ToolID == id {
			t.Reviews = append(t.Reviews, *r)
		}
	}
	return t, nil
}

func (m *memStore) CreateTool(_ context.Context, in models.ToolInput) (*models.Tool, error) {
	if _, ok := m.categories[in.CategoryID]; !ok {
		return nil, db.ErrInvalidReference
	}
	t := &models.Tool{
		ID:                m.id(),
		Name:              in.Name,
		Description:       in.Description,
		CategoryID:        &in.CategoryID,
		WebsiteURL:        in.WebsiteURL,
		ImagePath:         in.ImagePath,
		AccessLevel:       in.AccessLevel,
		BusinessUtility:   in.BusinessUtility,
		PricePointType:    in.PricePointType,
		PricePointDetails: in.PricePointDetails,
		CreatedAt:         time.Now(),
	}
	for _, iid := range in.IndustryIDs {
		i, ok := m.industries[iid]
		if !ok {
			return nil, db.ErrInvalidReference
		}
		t.Industries = append(t.Industries, *i)
	}
	m.tools[t.ID] = t
	for _, g := range in.Guides {
		author := in.AuthorID
		gid := m.id()
		m.guides[gid] = &models.Guide{
			ID: gid, ToolID: t.ID, Title: g.Title, Content: g.Content,
			GuideType: g.GuideType, OrderIndex: g.OrderIndex, AuthorID: &author,
		}
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) UpdateTool(ctx context.Context, id int64, p models.ToolPatch) (*models.Tool, error) {
	t, ok := m.tools[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.CategoryID != nil {
		t.CategoryID = p.CategoryID
	}
	if p.AccessLevel != nil {
		t.AccessLevel = *p.AccessLevel
	}
	if p.ImagePath != nil {
		t.ImagePath = *p.ImagePath
	}
	if p.IndustryIDs != nil {
		t.Industries = nil
		for _, iid := range p.IndustryIDs {
			i, ok := m.industries[iid]
			if !ok {
				return nil, db.ErrInvalidReference
			}
			t.Industries = append(t.Industries, *i)
		}
	}
	return m.GetTool(ctx, id)
}

func (m *memStore) DeleteTool(_ context.Context, id int64) (string, error) {
	t, ok := m.tools[id]
	if !ok {
		return "", db.ErrNotFound
	}
	delete(m.tools, id)
	for rid, r := range m.reviews {
		if r.ToolID == id {
			delete(m.reviews, rid)
		}
	}
	for fid, f := range m.favorites {
		if f.ToolID == id {
			delete(m.favorites, fid)
		}
	}
	for gid, g := range m.guides {
		if g.ToolID == id {
			delete(m.guides, gid)
		}
	}
	return t.ImagePath, nil
}

func (m *memStore) AddFavorite(_ context.Context, userID, toolID int64) (*models.Favorite, error) {
	t, ok := m.tools[toolID]
	if !ok {
		return nil, db.ErrInvalidReference
	}
	for _, f := range m.favorites {
		if f.UserID == userID && f.ToolID == toolID {
			return nil, db.ErrConflict
		}
	}
	tool := *t
	f := &models.Favorite{ID: m.id(), UserID: userID, ToolID: toolID, Tool: &tool, CreatedAt: time.Now()}
	m.favorites[f.ID] = f
	return f, nil
}

func (m *memStore) RemoveFavorite(_ context.Context, userID, toolID int64) error {
	for id, f := range m.favorites {
		if f.UserID == userID && f.ToolID == toolID {
			delete(m.favorites, id)
			return nil
		}
	}
	return db.ErrNotFound
}

func (m *memStore) ListFavorites(_ context.Context, userID int64, page models.Page) ([]models.Favorite, int, error) {
	out := []models.Favorite{}
	for _, id := range sortedKeys(m.favorites) {
		if f := m.favorites[id]; f.UserID == userID {
			out = append(out, *f)
		}
	}
	return paginate(out, page), len(out), nil
}

func (m *memStore) ListGuides(_ context.Context, toolID int64) ([]models.Guide, error) {
	out := []models.Guide{}
	for _, id := range sortedKeys(m.guides) {
		if g := m.guides[id]; g.ToolID == toolID {
			out = append(out, *g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *memStore) ListAllGuides(_ context.Context, f models.GuideFilter) ([]models.Guide, int, error) {
	out := []models.Guide{}
	for _, id := range sortedKeys(m.guides) {
		if g := m.guides[id]; f.ToolID == 0 || g.ToolID == f.ToolID {
			out = append(out, *g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ToolID != out[j].ToolID {
			return out[i].ToolID < out[j].ToolID
		}
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return paginate(out, f.Page), len(out), nil
}

func (m *memStore) GetGuide(_ context.Context, id int64) (*models.Guide, error) {
	g, ok := m.guides[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memStore) CreateGuide(_ context.Context, g *models.Guide) error {
	if _, ok := m.tools[g.ToolID]; !ok {
		return db.ErrInvalidReference
	}
	g.ID = m.id()
	cp := *g
	m.guides[g.ID] = &cp
	return nil
}

func (m *memStore) UpdateGuide(ctx context.Context, id int64, p models.GuidePatch) (*models.Guide, error) {
	g, ok := m.guides[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if p.Title != nil {
		g.Title = *p.Title
	}
	if p.Content != nil {
		g.Content = *p.Content
	}
	if p.GuideType != nil {
		g.GuideType = *p.GuideType
	}
	if p.OrderIndex != nil {
		g.OrderIndex = *p.OrderIndex
	}
	return m.GetGuide(ctx, id)
}

func (m *memStore) DeleteGuide(_ context.Context, id int64) error {
	if _, ok := m.guides[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.guides, id)
	return nil
}

// reviews

func (m *memStore) recompute(toolID int64) {
	t, ok := m.tools[toolID]
	if !ok {
		return
	}
	var sum, n int
	for _, r := range m.reviews {
		if r.ToolID == toolID {
			sum += r.Rating
			n++
		}
	}
	t.Rating = 0
	if n > 0 {
		t.Rating = float64(sum) / float64(n)
	}
}

func (m *memStore) ListReviews(_ context.Context, f models.ReviewFilter) ([]models.Review, int, error) {
	out := []models.Review{}
	for _, id := range sortedKeys(m.reviews) {
		if r := m.reviews[id]; r.ToolID == f.ToolID {
			out = append(out, *r)
		}
	}
	if f.Desc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return paginate(out, f.Page), len(out), nil
}

func (m *memStore) ListAllReviews(_ context.Context, f models.ReviewFilter) ([]models.Review, int, error) {
	out := []models.Review{}
	for _, id := range sortedKeys(m.reviews) {
		r := m.reviews[id]
		if (f.ToolID != 0 && r.ToolID != f.ToolID) || (f.Verified != nil && r.IsVerified != *f.Verified) {
			continue
		}
		out = append(out, *r)
	}
	if f.Desc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return paginate(out, f.Page), len(out), nil
}

func (m *memStore) GetReview(_ context.Context, id int64) (*models.Review, error) {
	r, ok := m.reviews[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) CreateReview(_ context.Context, r *models.Review) error {
	if _, ok := m.tools[r.ToolID]; !ok {
		return db.ErrInvalidReference
	}
	for _, existing := range m.reviews {
		if existing.UserID == r.UserID && existing.ToolID == r.ToolID {
			return db.ErrConflict
		}
	}
	r.ID = m.id()
	r.CreatedAt = time.Now()
	cp := *r
	m.reviews[r.ID] = &cp
	m.recompute(r.ToolID)
	return nil
}

func (m *memStore) UpdateReview(ctx context.Context, id int64, p models.ReviewPatch) (*models.Review, error) {
	r, ok := m.reviews[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if p.Rating != nil {
		r.Rating = *p.Rating
	}
	if p.Comment != nil {
		r.Comment = *p.Comment
	}
	if p.IsVerified != nil {
		r.IsVerified = *p.IsVerified
	}
	m.recompute(r.ToolID)
	return m.GetReview(ctx, id)
}

func (m *memStore) DeleteReview(_ context.Context, id int64) error {
	r, ok := m.reviews[id]
	if !ok {
		return db.ErrNotFound
	}
	delete(m.reviews, id)
	m.recompute(r.ToolID)
	return nil
}

// billing

func (m *memStore) ChangeSubscription(_ context.Context, ch models.SubscriptionChange) (*models.Subscription, *models.PaymentTransaction, error) {
	u, ok := m.users[ch.UserID]
	if !ok {
		return nil, nil, db.ErrNotFound
	}
	u.SubscriptionTier = ch.Tier
	u.SubscriptionStartDate = &ch.Start
	u.SubscriptionEndDate = ch.End
	for _, s := range m.subs {
		if s.UserID == ch.UserID && s.Status == models.SubscriptionActive {
			s.Status = models.SubscriptionCanceled
		}
	}
	if !ch.Paid {
		return nil, nil, nil
	}
	sub := &models.Subscription{
		ID: m.id(), UserID: ch.UserID, PlanID: ch.PlanID, Status: models.SubscriptionActive,
		CurrentPeriodStart: ch.Start, CurrentPeriodEnd: *ch.End, PaymentMethodID: ch.PaymentMethodID,
	}
	m.subs[sub.ID] = sub
	txn := models.PaymentTransaction{
		ID: m.id(), UserID: ch.UserID, Amount: ch.Amount, Currency: ch.Currency,
		Status: models.TransactionCompleted, SubscriptionTier: ch.Tier, TransactionDate: ch.Start,
	}
	m.txns = append(m.txns, txn)
	subCopy := *sub
	return &subCopy, &txn, nil
}

func (m *memStore) ActiveSubscription(_ context.Context, userID int64) (*models.Subscription, error) {
	for _, id := range sortedKeys(m.subs) {
		if s := m.subs[id]; s.UserID == userID && s.Status == models.SubscriptionActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memStore) LatestTransaction(_ context.Context, userID int64) (*models.PaymentTransaction, error) {
	for i := len(m.txns) - 1; i >= 0; i-- {
		if m.txns[i].UserID == userID {
			txn := m.txns[i]
			return &txn, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memStore) CancelSubscription(_ context.Context, userID int64, immediate bool, now time.Time) (*models.Subscription, error) {
	for _, id := range sortedKeys(m.subs) {
		s := m.subs[id]
		if s.UserID != userID || s.Status != models.SubscriptionActive {
			continue
		}
		if immediate {
			s.Status = models.SubscriptionCanceled
			s.CurrentPeriodEnd = now
			m.users[userID].SubscriptionTier = models.TierFree
		} else {
			s.CancelAtPeriodEnd = true
		}
		cp := *s
		return &cp, nil
	}
	return nil, db.ErrNotFound
}

func (m *memStore) ListSubscriptions(_ context.Context, f models.SubscriptionFilter) ([]models.Subscription, int, error) {
	out := []models.Subscription{}
	for _, id := range sortedKeys(m.subs) {
		s := m.subs[id]
		if (f.Status != "" && s.Status != f.Status) || (f.PlanID != "" && s.PlanID != f.PlanID) {
			continue
		}
		out = append(out, *s)
	}
	return paginate(out, f.Page), len(out), nil
}

// stats

func (m *memStore) DashboardStats(context.Context, time.Time) (*models.DashboardStats, error) {
	m.dashboardCalls++
	return &models.DashboardStats{}, nil
}

func (m *memStore) UserStats(context.Context, time.Time, int) (*models.UserStats, error) {
	return &models.UserStats{}, nil
}

func (m *memStore) ToolStats(context.Context, int) (*models.ToolStats, error) {
	return &models.ToolStats{}, nil
}

func (m *memStore) RevenueStats(context.Context, time.Time, int) (*models.RevenueStats, error) {
	return &models.RevenueStats{}, nil
}

package domain

// Bootstrap datasets used to seed a fresh local store. Display names stay in
// the company's working language because they are what the spreadsheet holds.

// DefaultAdminID is the id of the fallback administrator account. One user
// with this id must always be resolvable, even when the remote user list is
// empty or unreachable.
const DefaultAdminID = "admin"

// DefaultAdmin returns the fallback administrator seeded on first run.
func DefaultAdmin() User {
	return User{
		ID:       DefaultAdminID,
		Name:     "系統管理員",
		Role:     RoleManager,
		Avatar:   "https://ui-avatars.com/api/?name=Admin&background=0D8ABC&color=fff",
		Password: "admin888",
	}
}

// SeedCategories returns the bootstrap accounting categories.
func SeedCategories() []Category {
	return []Category{
		{ID: "c1", Name: "營業收入", Type: TypeIncome, IsActive: true},
		{ID: "c2", Name: "辦公室租金", Type: TypeExpense, IsActive: true},
		{ID: "c3", Name: "員工伙食", Type: TypeExpense, IsActive: true},
		{ID: "c4", Name: "交通差旅", Type: TypeExpense, IsActive: true},
		{ID: "c5", Name: "設備採購", Type: TypeExpense, IsActive: true},
	}
}

// SeedProjects returns the bootstrap projects and departments.
func SeedProjects() []ProjectDept {
	return []ProjectDept{
		{ID: "p1", Name: "行政部", IsActive: true},
		{ID: "p2", Name: "業務部", IsActive: true},
		{ID: "p3", Name: "專案 A - 網站改版", IsActive: true},
	}
}

// SeedPaymentMethods returns the bootstrap payment methods.
func SeedPaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		{ID: "pm1", Name: "公司銀行帳戶", IsActive: true},
		{ID: "pm2", Name: "公司信用卡", IsActive: true},
		{ID: "pm3", Name: "員工代墊 (現金)", IsActive: true},
	}
}

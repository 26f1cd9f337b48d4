package config

// AdminConfig is the account created by cmd/createadmin.
type AdminConfig struct {
    Group       string
    Username    string
    Email       string
    PhoneNumber string
    Password    string
}

// LoadAdminConfig reads ADMIN_* variables.  Everything but the group name is
// required.
func LoadAdminConfig() AdminConfig {
    return AdminConfig{
        Group:       envStr("ADMIN_GROUP", "base"),
        Username:    must("ADMIN_USERNAME"),
        Email:       must("ADMIN_EMAIL"),
        PhoneNumber: must("ADMIN_PHONE_NUMBER"),
        Password:    must("ADMIN_PASSWORD"),
    }
}

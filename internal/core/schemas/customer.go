package schemas

import "github.com/JonMunkholm/crmingest/internal/core"

// CustomerKey is the registry key of the built-in customer schema.
const CustomerKey = "customer"

// Customer field names.
const (
	Title                  core.CanonicalField = "title"
	GivenName              core.CanonicalField = "given_name"
	MiddleName             core.CanonicalField = "middle_name"
	FamilyName             core.CanonicalField = "family_name"
	NameSuffix             core.CanonicalField = "name_suffix"
	FullName               core.CanonicalField = "full_name"
	PreferredName          core.CanonicalField = "preferred_name"
	Email                  core.CanonicalField = "email"
	EmailSecondary         core.CanonicalField = "email_secondary"
	Phone                  core.CanonicalField = "phone"
	PhoneSecondary         core.CanonicalField = "phone_secondary"
	WhatsAppNumber         core.CanonicalField = "whatsapp_number"
	WeChatID               core.CanonicalField = "wechat_id"
	YouTubeHandle          core.CanonicalField = "youtube_handle"
	Organization           core.CanonicalField = "organization"
	Position               core.CanonicalField = "position"
	Address                core.CanonicalField = "address"
	Country                core.CanonicalField = "country"
	Website                core.CanonicalField = "website"
	Classification         core.CanonicalField = "classification"
	Status                 core.CanonicalField = "status"
	Source                 core.CanonicalField = "source"
	ReferralSource         core.CanonicalField = "referral_source"
	PreferredCommunication core.CanonicalField = "preferred_communication"
	MarketingConsent       core.CanonicalField = "marketing_consent"
	Notes                  core.CanonicalField = "notes"
)

func init() {
	core.Register(Customer())
}

// Customer builds the customer schema. Each call returns a fresh value.
func Customer() *core.Schema {
	s, err := core.NewSchema(CustomerKey, "Customers", customerFields(), core.SchemaOptions{
		Identifier:     Email,
		SecondaryEmail: EmailSecondary,
		Handles:        []core.CanonicalField{YouTubeHandle, WeChatID},
		Names: core.NameFields{
			Full:   FullName,
			Title:  Title,
			Given:  GivenName,
			Middle: MiddleName,
			Family: FamilyName,
			Suffix: NameSuffix,
		},
		SourceField: Source,
	})
	if err != nil {
		panic(err)
	}
	return s
}

func customerFields() []core.FieldSpec {
	return []core.FieldSpec{
		{
			Name: Title, Label: "Title", Type: core.FieldText,
			Aliases: []string{"salutation", "prefix", "honorific"},
		},
		{
			Name: GivenName, Label: "First name", Type: core.FieldName,
			Aliases: []string{"first_name", "firstname", "first", "givenname", "fname", "f_name", "forename", "christian_name"},
		},
		{
			Name: MiddleName, Label: "Middle name", Type: core.FieldName,
			Aliases: []string{"middlename", "middle", "middle_initial", "mi", "m_name", "second_name"},
		},
		{
			Name: FamilyName, Label: "Last name", Type: core.FieldName, Mandatory: true,
			Aliases:     []string{"last_name", "lastname", "last", "surname", "familyname", "lname", "l_name", "sur_name"},
			SatisfiedBy: []core.CanonicalField{FullName},
		},
		{
			Name: NameSuffix, Label: "Suffix", Type: core.FieldText,
			Aliases: []string{"suffix", "jr_sr", "generation"},
		},
		{
			Name: FullName, Label: "Full name", Type: core.FieldName,
			Aliases: []string{"fullname", "name", "contact_name", "customer_name", "contact"},
		},
		{
			Name: PreferredName, Label: "Preferred name", Type: core.FieldName,
			Aliases: []string{"preferredname", "nickname", "nick_name", "display_name", "displayname", "known_as", "goes_by"},
		},
		{
			Name: Email, Label: "Email", Type: core.FieldEmail, Mandatory: true,
			Aliases: []string{"email_primary", "primary_email", "email_address", "email1", "main_email", "work_email",
				"business_email", "emails", "email_addresses", "contact_email", "e_mail", "mail"},
		},
		{
			Name: EmailSecondary, Label: "Secondary email", Type: core.FieldEmail,
			Aliases: []string{"secondary_email", "email2", "email_2", "personal_email", "alt_email", "alternative_email", "backup_email"},
		},
		{
			Name: Phone, Label: "Phone", Type: core.FieldPhone,
			Aliases: []string{"phone_number", "phone_primary", "primary_phone", "phone1", "mobile", "cell", "mobile_number", "contact_number", "telephone", "tel"},
		},
		{
			Name: PhoneSecondary, Label: "Secondary phone", Type: core.FieldPhone,
			Aliases: []string{"secondary_phone", "phone2", "home_phone", "work_phone", "office_phone", "landline"},
		},
		{
			Name: WhatsAppNumber, Label: "WhatsApp", Type: core.FieldPhone,
			Aliases: []string{"whatsapp", "whats_app", "wa_number", "whatsapp_phone"},
		},
		{
			Name: WeChatID, Label: "WeChat ID", Type: core.FieldHandle,
			Aliases:    []string{"wechat", "we_chat", "weixin", "wechat_handle"},
			Normalizer: NormalizeWeChatID,
		},
		{
			Name: YouTubeHandle, Label: "YouTube handle", Type: core.FieldHandle,
			Aliases:    []string{"youtube", "youtube_channel", "yt_handle", "channel_handle"},
			Normalizer: NormalizeYouTubeHandle,
		},
		{
			Name: Organization, Label: "Organization", Type: core.FieldText,
			Aliases: []string{"company", "company_name", "organisation", "employer", "company_primary", "current_company", "workplace"},
		},
		{
			Name: Position, Label: "Position", Type: core.FieldText,
			Aliases: []string{"job_title", "title_work", "role", "designation", "position_primary", "current_position", "job_role"},
		},
		{
			Name: Address, Label: "Address", Type: core.FieldText,
			Aliases: []string{"street_address", "mailing_address", "postal_address"},
		},
		{
			Name: Country, Label: "Country", Type: core.FieldCountry,
			Aliases: []string{"country_region", "nationality", "region", "country_code"},
		},
		{
			Name: Website, Label: "Website", Type: core.FieldURL,
			Aliases: []string{"url", "web", "homepage", "site", "web_site"},
		},
		{
			Name: Classification, Label: "Customer type", Type: core.FieldEnum,
			Aliases: []string{"customer_type", "type", "category"},
			Choices: []string{"individual", "corporate", "student", "instructor"},
			ValueAliases: map[string]string{
				"personal": "individual", "person": "individual", "learner": "individual",
				"company": "corporate", "business": "corporate", "organization": "corporate", "org": "corporate",
				"pupil": "student", "academic": "student",
				"teacher": "instructor", "trainer": "instructor", "educator": "instructor", "faculty": "instructor",
			},
			Default: "individual",
		},
		{
			Name: Status, Label: "Status", Type: core.FieldEnum,
			Aliases: []string{"customer_status", "lifecycle_stage", "stage"},
			Choices: []string{"active", "inactive", "prospect", "alumni"},
			ValueAliases: map[string]string{
				"lead": "prospect", "potential": "prospect", "former": "inactive", "graduate": "alumni",
			},
			Default: "prospect",
		},
		{
			Name: Source, Label: "Source", Type: core.FieldEnum,
			Aliases: []string{"data_source", "lead_source", "acquisition_source", "how_found", "found_us", "marketing_source", "channel"},
			Choices: []string{"website", "google_search", "social_media", "facebook", "linkedin", "instagram", "twitter",
				"referral", "word_of_mouth", "email_marketing", "google_ads", "conference", "csv_import", "other", "unknown"},
			ValueAliases: map[string]string{
				"web": "website", "online": "website", "site": "website",
				"google": "google_search", "search": "google_search", "organic_search": "google_search",
				"social": "social_media", "social_network": "social_media",
				"fb": "facebook", "linked_in": "linkedin", "ig": "instagram", "x": "twitter", "twitter_x": "twitter",
				"referred": "referral", "recommendation": "referral",
				"word_mouth": "word_of_mouth", "wom": "word_of_mouth",
				"email": "email_marketing", "newsletter": "email_marketing",
				"adwords": "google_ads", "google_adwords": "google_ads",
				"event": "conference", "trade_show": "conference",
				"csv": "csv_import", "import": "csv_import", "bulk": "csv_import", "upload": "csv_import",
				"misc": "other", "miscellaneous": "other",
				"not_known": "unknown", "n/a": "unknown", "na": "unknown",
			},
		},
		{
			Name: ReferralSource, Label: "Referral source", Type: core.FieldText,
			Aliases: []string{"referral", "referred_by", "referrer"},
		},
		{
			Name: PreferredCommunication, Label: "Preferred channel", Type: core.FieldEnum,
			Aliases: []string{"preferred_channel", "contact_preference", "communication_preference"},
			Choices: []string{"email", "whatsapp", "wechat", "phone"},
			ValueAliases: map[string]string{
				"e_mail": "email", "mail": "email", "whats_app": "whatsapp", "wa": "whatsapp",
				"weixin": "wechat", "we_chat": "wechat", "call": "phone", "telephone": "phone", "sms": "phone",
			},
		},
		{
			Name: MarketingConsent, Label: "Marketing consent", Type: core.FieldBool,
			Aliases: []string{"consent", "opt_in", "optin", "newsletter_opt_in", "email_consent", "gdpr_consent", "subscribed"},
		},
		{
			Name: Notes, Label: "Notes", Type: core.FieldText,
			Aliases: []string{"comments", "remarks", "note", "description"},
		},
	}
}

package sqlite

// Schema DDL for all tables. Timestamps are Unix milliseconds.
const (
	createOrganizations = `CREATE TABLE IF NOT EXISTS organizations (
    org_id TEXT PRIMARY KEY,
    handle TEXT NOT NULL UNIQUE,
    tier TEXT NOT NULL,
    verification TEXT NOT NULL,
    legal_name TEXT NOT NULL,
    website TEXT NOT NULL DEFAULT '',
    country TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);`

	createUsers = `CREATE TABLE IF NOT EXISTS users (
    user_id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    phone TEXT NOT NULL DEFAULT '',
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);`

	createSeats = `CREATE TABLE IF NOT EXISTS seats (
    user_id TEXT NOT NULL,
    org_id TEXT NOT NULL,
    role TEXT NOT NULL,
    PRIMARY KEY (user_id, org_id),
    FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE,
    FOREIGN KEY (org_id) REFERENCES organizations(org_id) ON DELETE CASCADE
);`

	createMaterialIdentifiers = `CREATE TABLE IF NOT EXISTS material_identifiers (
    identifier_id TEXT PRIMARY KEY,
    scheme TEXT NOT NULL,
    value TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    UNIQUE (scheme, value)
);`

	createListings = `CREATE TABLE IF NOT EXISTS listings (
    listing_id TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    listing_type TEXT NOT NULL,
    status TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    quantity TEXT NOT NULL DEFAULT '',
    unit TEXT NOT NULL DEFAULT '',
    location TEXT NOT NULL DEFAULT '',
    material_identifier_id TEXT NOT NULL,
    published_at INTEGER,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (org_id) REFERENCES organizations(org_id),
    FOREIGN KEY (material_identifier_id) REFERENCES material_identifiers(identifier_id)
);`

	createPromotions = `CREATE TABLE IF NOT EXISTS promotions (
    promotion_id TEXT PRIMARY KEY,
    listing_id TEXT NOT NULL,
    org_id TEXT NOT NULL,
    expires_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (listing_id) REFERENCES listings(listing_id) ON DELETE CASCADE
);`

	createOfferThreads = `CREATE TABLE IF NOT EXISTS offer_threads (
    thread_id TEXT PRIMARY KEY,
    listing_id TEXT NOT NULL,
    buyer_org_id TEXT NOT NULL,
    seller_org_id TEXT NOT NULL,
    live_offer_id TEXT,
    version INTEGER NOT NULL DEFAULT 0,
    accepted_offer_id TEXT,
    accepted_at INTEGER,
    created_at INTEGER NOT NULL,
    UNIQUE (listing_id, buyer_org_id),
    FOREIGN KEY (listing_id) REFERENCES listings(listing_id),
    FOREIGN KEY (buyer_org_id) REFERENCES organizations(org_id),
    FOREIGN KEY (seller_org_id) REFERENCES organizations(org_id)
);`

	createOffers = `CREATE TABLE IF NOT EXISTS offers (
    offer_id TEXT PRIMARY KEY,
    thread_id TEXT NOT NULL,
    created_by_org_id TEXT NOT NULL,
    state TEXT NOT NULL,
    price REAL NOT NULL DEFAULT 0,
    quantity TEXT NOT NULL DEFAULT '',
    terms TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT '',
    expires_at INTEGER,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (thread_id) REFERENCES offer_threads(thread_id)
);`

	createNotifications = `CREATE TABLE IF NOT EXISTS notifications (
    notification_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    org_id TEXT NOT NULL DEFAULT '',
    notification_type TEXT NOT NULL,
    payload TEXT NOT NULL DEFAULT '{}',
    read_at INTEGER,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
);`

	createReveals = `CREATE TABLE IF NOT EXISTS reveals (
    org_id TEXT NOT NULL,
    thread_id TEXT NOT NULL,
    revealed_at INTEGER NOT NULL,
    PRIMARY KEY (org_id, thread_id),
    FOREIGN KEY (thread_id) REFERENCES offer_threads(thread_id)
);`
)

// Index DDL for common queries.
const (
	idxSeatsOrg           = `CREATE INDEX IF NOT EXISTS idx_seats_org ON seats(org_id);`
	idxListingsStatus     = `CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status, published_at);`
	idxListingsOrg        = `CREATE INDEX IF NOT EXISTS idx_listings_org ON listings(org_id);`
	idxPromotionsListing  = `CREATE INDEX IF NOT EXISTS idx_promotions_listing ON promotions(listing_id, expires_at);`
	idxOffersThread       = `CREATE INDEX IF NOT EXISTS idx_offers_thread ON offers(thread_id, created_at);`
	idxOffersOneLive      = `CREATE UNIQUE INDEX IF NOT EXISTS idx_offers_one_live ON offers(thread_id) WHERE state IN ('OPEN', 'COUNTER');`
	idxOffersExpiry       = `CREATE INDEX IF NOT EXISTS idx_offers_expiry ON offers(state, expires_at);`
	idxNotificationsUser  = `CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);`
	idxOfferThreadsSeller = `CREATE INDEX IF NOT EXISTS idx_offer_threads_seller ON offer_threads(seller_org_id);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createOrganizations,
	createUsers,
	createSeats,
	createMaterialIdentifiers,
	createListings,
	createPromotions,
	createOfferThreads,
	createOffers,
	createNotifications,
	createReveals,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxSeatsOrg,
	idxListingsStatus,
	idxListingsOrg,
	idxPromotionsListing,
	idxOffersThread,
	idxOffersOneLive,
	idxOffersExpiry,
	idxNotificationsUser,
	idxOfferThreadsSeller,
}
